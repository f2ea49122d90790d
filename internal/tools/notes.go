package tools

import (
	"context"

	"github.com/juniperhq/valet/internal/envelope"
	"github.com/juniperhq/valet/internal/fault"
	"github.com/juniperhq/valet/internal/store"
)

// RegisterNoteTools wires the note tools against the entity store.
// Notes are append-only: no update tool exists on purpose.
func RegisterNoteTools(r *Registry, st *store.Store) error {
	specs := []Spec{
		{
			Name:        "create_note",
			Description: "Create a new note with a title and content.",
			Kind:        KindLocal,
			Params: map[string]ParamSpec{
				"title":   {Type: "string", Required: true, Description: "Note title"},
				"content": {Type: "string", Required: true, Description: "Note content"},
			},
			Handler: func(ctx context.Context, args map[string]any) (*envelope.Result, error) {
				note, err := st.CreateNote(ctx, argString(args, "title"), argString(args, "content"))
				if err != nil {
					return nil, err
				}
				return &envelope.Result{Payload: note}, nil
			},
		},
		{
			Name:        "list_notes",
			Description: "List notes ordered by creation time, optionally matching a keyword against title and content.",
			Kind:        KindLocal,
			Params: map[string]ParamSpec{
				"keyword": {Type: "string", Description: "Substring to search for; omit for all notes"},
			},
			Handler: func(ctx context.Context, args map[string]any) (*envelope.Result, error) {
				notes, err := st.ListNotes(ctx, argString(args, "keyword"))
				if err != nil {
					return nil, err
				}
				return &envelope.Result{Payload: map[string]any{"notes": notes, "count": len(notes)}}, nil
			},
		},
		{
			Name:        "delete_note",
			Description: "Delete a note by id. Deleting a nonexistent id is not an error.",
			Kind:        KindLocal,
			Params: map[string]ParamSpec{
				"note_id": {Type: "integer", Required: true, Description: "Note id"},
			},
			Handler: func(ctx context.Context, args map[string]any) (*envelope.Result, error) {
				id, ok := argInt64(args, "note_id")
				if !ok {
					return nil, fault.New(fault.KindValidation, "note_id must be an integer")
				}
				existed, err := st.DeleteNote(ctx, id)
				if err != nil {
					return nil, err
				}
				return &envelope.Result{Payload: map[string]any{"existed": existed}}, nil
			},
		},
	}
	for _, spec := range specs {
		if err := r.Register(spec); err != nil {
			return err
		}
	}
	return nil
}
