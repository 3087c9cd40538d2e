package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/orchestrator/core/internal/core/automation"
	"github.com/orchestrator/core/internal/core/jobmanager"
	"github.com/orchestrator/core/internal/core/ports"
)

// toolCatalog is the fixed orchestrator-scoped tool set:
// dispatch_task, list_jobs, cancel_job, create_automation,
// list_automations, update_automation, delete_automation,
// update_user_persona.
func toolCatalog() []ports.ToolSpec {
	obj := func(props map[string]any, required ...string) map[string]any {
		return map[string]any{"type": "object", "properties": props, "required": required}
	}
	str := map[string]any{"type": "string"}
	boolT := map[string]any{"type": "boolean"}
	strArr := map[string]any{"type": "array", "items": str}

	return []ports.ToolSpec{
		{
			Name:        "dispatch_task",
			Description: "Dispatch a task to a scoped worker agent. Returns immediately with a job id; completion is delivered asynchronously.",
			Parameters: obj(map[string]any{
				"worker_type": str,
				"task":        str,
				"depends_on":  strArr,
			}, "worker_type", "task"),
		},
		{
			Name:        "list_jobs",
			Description: "List jobs for the current chat.",
			Parameters:  obj(map[string]any{}),
		},
		{
			Name:        "cancel_job",
			Description: "Cancel a running or queued job by id.",
			Parameters:  obj(map[string]any{"job_id": str}, "job_id"),
		},
		{
			Name:        "create_automation",
			Description: "Create a recurring automation for the current chat.",
			Parameters: obj(map[string]any{
				"name":                str,
				"description":         str,
				"schedule_kind":       map[string]any{"type": "string", "enum": []string{"cron", "interval", "random"}},
				"cron_expr":           str,
				"minutes":             map[string]any{"type": "integer"},
				"min_minutes":         map[string]any{"type": "integer"},
				"max_minutes":         map[string]any{"type": "integer"},
				"enabled":             boolT,
				"respect_quiet_hours": boolT,
			}, "name", "schedule_kind"),
		},
		{
			Name:        "list_automations",
			Description: "List automations for the current chat.",
			Parameters:  obj(map[string]any{}),
		},
		{
			Name:        "update_automation",
			Description: "Update an existing automation.",
			Parameters: obj(map[string]any{
				"id":                  str,
				"enabled":             boolT,
				"name":                str,
				"description":         str,
				"respect_quiet_hours": boolT,
			}, "id"),
		},
		{
			Name:        "delete_automation",
			Description: "Delete an automation by id.",
			Parameters:  obj(map[string]any{"id": str}, "id"),
		},
		{
			Name:        "update_user_persona",
			Description: "Update the active persona instructions for the current chat.",
			Parameters:  obj(map[string]any{"instructions": str}, "instructions"),
		},
	}
}

// executeTool dispatches one orchestrator tool call. The returned
// value is serialized and truncated by the caller with the same rule
// applied to worker tool results.
func (l *Loop) executeTool(ctx context.Context, chat string, call ports.ToolCall, onUpdate UpdateFunc, edit EditFunc) (any, string, error) {
	switch call.Name {
	case "dispatch_task":
		return l.toolDispatchTask(ctx, chat, call.Arguments, onUpdate, edit)
	case "list_jobs":
		jobs := l.Jobs.List(chat)
		return jobSummaries(jobs), fmt.Sprintf("listed %d jobs", len(jobs)), nil
	case "cancel_job":
		id, _ := call.Arguments["job_id"].(string)
		j := l.Jobs.Cancel(id)
		if j == nil {
			return map[string]any{"error": "job not found"}, "cancel: not found", nil
		}
		return jobSummary(*j), fmt.Sprintf("cancelled job %s", id), nil
	case "create_automation":
		return l.toolCreateAutomation(chat, call.Arguments)
	case "list_automations":
		autos := l.Automations.List(chat)
		return autoSummaries(autos), fmt.Sprintf("listed %d automations", len(autos)), nil
	case "update_automation":
		return l.toolUpdateAutomation(call.Arguments)
	case "delete_automation":
		id, _ := call.Arguments["id"].(string)
		if err := l.Automations.Delete(id); err != nil {
			return map[string]any{"error": err.Error()}, "delete automation failed", nil
		}
		return map[string]any{"deleted": id}, fmt.Sprintf("deleted automation %s", id), nil
	case "update_user_persona":
		return l.toolUpdatePersona(ctx, chat, call.Arguments)
	default:
		return nil, "", fmt.Errorf("unknown tool: %s", call.Name)
	}
}

func (l *Loop) toolDispatchTask(ctx context.Context, chat string, args map[string]any, onUpdate UpdateFunc, edit EditFunc) (any, string, error) {
	workerType, _ := args["worker_type"].(string)
	task, _ := args["task"].(string)
	var dependsOn []string
	if raw, ok := args["depends_on"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				dependsOn = append(dependsOn, s)
			}
		}
	}
	if workerType == "" || task == "" {
		return map[string]any{"error": "worker_type and task are required"}, "dispatch_task: missing arguments", nil
	}

	job := l.dispatch(ctx, chat, workerType, task, dependsOn, onUpdate, edit)
	return map[string]any{"job_id": job.ID, "status": string(job.Status)}, fmt.Sprintf("dispatched %s job %s", workerType, job.ID), nil
}

func (l *Loop) toolCreateAutomation(chat string, args map[string]any) (any, string, error) {
	name, _ := args["name"].(string)
	desc, _ := args["description"].(string)
	kind, _ := args["schedule_kind"].(string)
	enabled := true
	if v, ok := args["enabled"].(bool); ok {
		enabled = v
	}
	respectQuiet, _ := args["respect_quiet_hours"].(bool)

	sched := automation.Schedule{Kind: automation.ScheduleKind(strings.ToLower(kind))}
	switch sched.Kind {
	case automation.ScheduleCron:
		sched.CronExpr, _ = args["cron_expr"].(string)
	case automation.ScheduleInterval:
		sched.Minutes = intArg(args["minutes"])
	case automation.ScheduleRandom:
		sched.MinMin = intArg(args["min_minutes"])
		sched.MaxMin = intArg(args["max_minutes"])
	}

	a, err := l.Automations.Create(automation.CreateRequest{
		ChatID: chat, Name: name, Description: desc, Schedule: sched,
		Enabled: enabled, RespectQuietHours: respectQuiet,
	})
	if err != nil {
		return map[string]any{"error": err.Error()}, "create_automation failed", nil
	}
	return autoSummary(a), fmt.Sprintf("created automation %s (%s)", a.ID, a.Name), nil
}

func (l *Loop) toolUpdateAutomation(args map[string]any) (any, string, error) {
	id, _ := args["id"].(string)
	req := automation.UpdateRequest{}
	if v, ok := args["enabled"].(bool); ok {
		req.Enabled = &v
	}
	if v, ok := args["name"].(string); ok && v != "" {
		req.Name = &v
	}
	if v, ok := args["description"].(string); ok && v != "" {
		req.Description = &v
	}
	if v, ok := args["respect_quiet_hours"].(bool); ok {
		req.RespectQuietHours = &v
	}
	a, err := l.Automations.Update(id, req)
	if err != nil {
		return map[string]any{"error": err.Error()}, "update_automation failed", nil
	}
	return autoSummary(a), fmt.Sprintf("updated automation %s", id), nil
}

func (l *Loop) toolUpdatePersona(ctx context.Context, chat string, args map[string]any) (any, string, error) {
	if l.Persona == nil {
		return map[string]any{"error": "persona manager not configured"}, "update_user_persona unavailable", nil
	}
	instructions, _ := args["instructions"].(string)
	if err := l.Persona.Update(ctx, chat, instructions); err != nil {
		return map[string]any{"error": err.Error()}, "update_user_persona failed", nil
	}
	return map[string]any{"updated": true}, "updated persona", nil
}

func intArg(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func jobSummary(j jobmanager.Job) map[string]any {
	return map[string]any{
		"id": j.ID, "worker_type": j.WorkerType, "status": string(j.Status),
		"task": j.Task, "result": j.Result, "error": j.Error,
	}
}

func jobSummaries(jobs []jobmanager.Job) []map[string]any {
	out := make([]map[string]any, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobSummary(j))
	}
	return out
}

func autoSummary(a automation.Automation) map[string]any {
	return map[string]any{
		"id": a.ID, "name": a.Name, "enabled": a.Enabled,
		"schedule_kind": string(a.Schedule.Kind), "next_run": a.NextRun,
		"run_count": a.RunCount, "last_error": a.LastError,
	}
}

func autoSummaries(autos []automation.Automation) []map[string]any {
	out := make([]map[string]any, 0, len(autos))
	for _, a := range autos {
		out = append(out, autoSummary(a))
	}
	return out
}
