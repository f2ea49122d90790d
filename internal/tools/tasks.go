package tools

import (
	"context"

	"github.com/juniperhq/valet/internal/envelope"
	"github.com/juniperhq/valet/internal/fault"
	"github.com/juniperhq/valet/internal/store"
)

var taskStatusEnum = []string{
	string(store.StatusPending),
	string(store.StatusInProgress),
	string(store.StatusDone),
}

// RegisterTaskTools wires the task CRUD tools against the entity store.
func RegisterTaskTools(r *Registry, st *store.Store) error {
	specs := []Spec{
		{
			Name:        "create_task",
			Description: "Create a new to-do task. New tasks start in the pending status.",
			Kind:        KindLocal,
			Params: map[string]ParamSpec{
				"title":       {Type: "string", Required: true, Description: "Task title"},
				"description": {Type: "string", Description: "Optional task description"},
			},
			Handler: func(ctx context.Context, args map[string]any) (*envelope.Result, error) {
				task, err := st.CreateTask(ctx, argString(args, "title"), argString(args, "description"))
				if err != nil {
					return nil, err
				}
				return &envelope.Result{Payload: task}, nil
			},
		},
		{
			Name:        "list_tasks",
			Description: "List tasks ordered by creation time, optionally filtered by status.",
			Kind:        KindLocal,
			Params: map[string]ParamSpec{
				"status": {Type: "string", Enum: taskStatusEnum, Description: "Filter by status; omit for all tasks"},
			},
			Handler: func(ctx context.Context, args map[string]any) (*envelope.Result, error) {
				tasks, err := st.ListTasks(ctx, store.TaskStatus(argString(args, "status")))
				if err != nil {
					return nil, err
				}
				return &envelope.Result{Payload: map[string]any{"tasks": tasks, "count": len(tasks)}}, nil
			},
		},
		{
			Name:        "update_task",
			Description: "Update a task's title, description or status by id.",
			Kind:        KindLocal,
			Params: map[string]ParamSpec{
				"task_id":     {Type: "integer", Required: true, Description: "Task id"},
				"title":       {Type: "string", Description: "New title"},
				"description": {Type: "string", Description: "New description"},
				"status":      {Type: "string", Enum: taskStatusEnum, Description: "New status"},
			},
			Handler: func(ctx context.Context, args map[string]any) (*envelope.Result, error) {
				id, ok := argInt64(args, "task_id")
				if !ok {
					return nil, fault.New(fault.KindValidation, "task_id must be an integer")
				}
				var upd store.TaskUpdate
				if _, present := args["title"]; present {
					v := argString(args, "title")
					upd.Title = &v
				}
				if _, present := args["description"]; present {
					v := argString(args, "description")
					upd.Description = &v
				}
				if _, present := args["status"]; present {
					v := store.TaskStatus(argString(args, "status"))
					upd.Status = &v
				}
				task, err := st.UpdateTask(ctx, id, upd)
				if err != nil {
					return nil, err
				}
				return &envelope.Result{Payload: task}, nil
			},
		},
		{
			Name:        "delete_task",
			Description: "Delete a task by id. Deleting a nonexistent id is not an error.",
			Kind:        KindLocal,
			Params: map[string]ParamSpec{
				"task_id": {Type: "integer", Required: true, Description: "Task id"},
			},
			Handler: func(ctx context.Context, args map[string]any) (*envelope.Result, error) {
				id, ok := argInt64(args, "task_id")
				if !ok {
					return nil, fault.New(fault.KindValidation, "task_id must be an integer")
				}
				existed, err := st.DeleteTask(ctx, id)
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
