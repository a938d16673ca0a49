package recurring

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cpaika/depflow/internal/events"
	"github.com/cpaika/depflow/internal/task"
)

// Source provides template and task persistence for the generator.
type Source interface {
	ListTemplates(ctx context.Context, activeOnly bool) ([]*Template, error)
	SaveTemplate(ctx context.Context, tpl *Template) error
	SaveTask(ctx context.Context, t *task.Task) error
}

// Generator sweeps active templates and stamps out task instances whose
// next occurrence has passed.
type Generator struct {
	source   Source
	bus      *events.Bus
	logger   *log.Logger
	interval time.Duration
}

// NewGenerator creates a generator sweeping on the given interval.
// An interval <= 0 defaults to one minute.
func NewGenerator(source Source, bus *events.Bus, logger *log.Logger, interval time.Duration) *Generator {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Generator{
		source:   source,
		bus:      bus,
		logger:   logger,
		interval: interval,
	}
}

// GenerateDue stamps out tasks for every active template that is due,
// persisting the advanced template state alongside each new task. Returns
// the tasks created during this sweep.
func (g *Generator) GenerateDue(ctx context.Context) ([]*task.Task, error) {
	templates, err := g.source.ListTemplates(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	now := time.Now().UTC()
	var created []*task.Task

	for _, tpl := range templates {
		if !tpl.ShouldGenerate(now) {
			continue
		}

		instance := tpl.Generate(now)

		// Generate may have deactivated an exhausted template without
		// producing a task; the state change still needs to be saved.
		if err := g.source.SaveTemplate(ctx, tpl); err != nil {
			return created, fmt.Errorf("failed to save template %s: %w", tpl.ID, err)
		}
		if instance == nil {
			g.logger.Debug("template exhausted", "template_id", tpl.ID)
			continue
		}

		if err := g.source.SaveTask(ctx, instance); err != nil {
			return created, fmt.Errorf("failed to save generated task %s: %w", instance.ID, err)
		}

		g.bus.Publish(events.TopicTask, events.TaskGeneratedEvent{
			ID:         instance.ID,
			TemplateID: tpl.ID,
			Timestamp:  now,
		})
		g.logger.Info("generated task from template",
			"template_id", tpl.ID, "task_id", instance.ID, "title", instance.Title)

		created = append(created, instance)
	}

	return created, nil
}

// Run sweeps on the configured interval until the context is cancelled.
func (g *Generator) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := g.GenerateDue(ctx); err != nil {
				g.logger.Error("generation sweep failed", "error", err)
			}
		}
	}
}
