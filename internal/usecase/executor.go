package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/chathy/api/chathy-command-engine/internal/apperrors"
	"gitlab.com/chathy/api/chathy-command-engine/internal/channel"
	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/internal/storage"
	"gitlab.com/chathy/api/chathy-command-engine/internal/validator"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/logger"
)

// Executor applies parsed commands to tenant state. Mutations happen inside
// the store's exclusive closure and validate before writing, so a rejected
// command leaves the state untouched. The audit entry is appended only after
// the mutation has committed.
type Executor struct {
	states   storage.StateRepo
	audit    *AuditService
	composer *channel.Composer
}

// NewExecutor builds the command executor.
func NewExecutor(states storage.StateRepo, audit *AuditService, composer *channel.Composer) *Executor {
	return &Executor{states: states, audit: audit, composer: composer}
}

// Execute runs one recognized command against the tenant's state and returns
// the result with its user-facing reply text. source names the originating
// channel for the audit ledger. Unrecognized commands are not handled here,
// the pipeline routes those to the fallback bridge.
func (e *Executor) Execute(ctx context.Context, tenantID string, cmd model.Command, source string) (*model.CommandResult, error) {
	switch cmd.Kind {
	case model.KindPriceUpdate:
		return e.executePriceUpdate(ctx, tenantID, *cmd.PriceUpdate, source)
	case model.KindHoursUpdate:
		return e.executeHoursUpdate(ctx, tenantID, *cmd.HoursUpdate, source)
	case model.KindServiceAdd:
		return e.executeServiceAdd(ctx, tenantID, *cmd.ServiceAdd, source)
	case model.KindQuery:
		return e.executeQuery(ctx, tenantID, cmd.Query)
	case model.KindHelp:
		e.record(ctx, tenantID, string(model.KindHelp), string(model.OutcomeApplied), "Sent help text", source, nil)
		return &model.CommandResult{Outcome: model.OutcomeApplied, HumanMessage: e.composer.Help()}, nil
	default:
		return nil, fmt.Errorf("%w: executor got command kind %s", apperrors.ErrValidation, cmd.Kind)
	}
}

func (e *Executor) executePriceUpdate(ctx context.Context, tenantID string, cmd model.PriceUpdate, source string) (*model.CommandResult, error) {
	if cmd.NewPrice <= 0 {
		return e.rejected(ctx, tenantID, model.KindPriceUpdate, source,
			fmt.Sprintf("The price for %s has to be above zero.", cmd.ServiceName), cmd)
	}

	var oldPrice float64
	err := e.states.Mutate(ctx, tenantID, func(state *model.BusinessState) error {
		svc, ok := state.FindServiceByName(cmd.ServiceName)
		if !ok {
			return apperrors.ErrNotFound
		}
		if cmd.OldPrice >= 0 && svc.Price != cmd.OldPrice {
			return fmt.Errorf("%w: %s is currently $%.2f, not $%.2f",
				apperrors.ErrValidation, svc.Name, svc.Price, cmd.OldPrice)
		}

		updated := *svc
		updated.Price = cmd.NewPrice
		if err := validator.Validate(&updated); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}

		oldPrice = svc.Price
		state.Services[svc.ID] = updated
		return nil
	})

	switch {
	case apperrors.IsNotFound(err):
		return e.notFound(ctx, tenantID, model.KindPriceUpdate, source,
			fmt.Sprintf("I couldn't find a service called \"%s\". Try \"show services\" to see the menu.", cmd.ServiceName), cmd)
	case apperrors.IsValidation(err):
		return e.rejected(ctx, tenantID, model.KindPriceUpdate, source, humanizeRejection(err), cmd)
	case err != nil:
		return nil, err
	}

	description := fmt.Sprintf("Updated %s price from $%.2f to $%.2f", cmd.ServiceName, oldPrice, cmd.NewPrice)
	return e.applied(ctx, tenantID, model.KindPriceUpdate, source, description+".", description, map[string]interface{}{
		"service_name": cmd.ServiceName,
		"old_price":    oldPrice,
		"new_price":    cmd.NewPrice,
	})
}

func (e *Executor) executeHoursUpdate(ctx context.Context, tenantID string, cmd model.HoursUpdate, source string) (*model.CommandResult, error) {
	if !cmd.IsClosed && cmd.Open >= cmd.Close {
		return e.rejected(ctx, tenantID, model.KindHoursUpdate, source,
			fmt.Sprintf("Opening time %s must be before closing time %s.", cmd.Open, cmd.Close), cmd)
	}

	var previous model.DayHours
	err := e.states.Mutate(ctx, tenantID, func(state *model.BusinessState) error {
		previous = state.Hours[cmd.Day]
		state.Hours[cmd.Day] = model.DayHours{IsClosed: cmd.IsClosed, Open: cmd.Open, Close: cmd.Close}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var description string
	if cmd.IsClosed {
		description = fmt.Sprintf("Marked %s as closed", cmd.Day)
	} else {
		description = fmt.Sprintf("Set %s hours to %s - %s", cmd.Day, cmd.Open, cmd.Close)
	}
	return e.applied(ctx, tenantID, model.KindHoursUpdate, source, description+".", description, map[string]interface{}{
		"day":      cmd.Day,
		"previous": previous,
		"current":  model.DayHours{IsClosed: cmd.IsClosed, Open: cmd.Open, Close: cmd.Close},
	})
}

func (e *Executor) executeServiceAdd(ctx context.Context, tenantID string, cmd model.ServiceAdd, source string) (*model.CommandResult, error) {
	svc := model.Service{
		ID:              uuid.NewString(),
		Name:            cmd.Name,
		Price:           cmd.Price,
		DurationMinutes: cmd.DurationMinutes,
		IsActive:        true,
	}
	if err := validator.Validate(&svc); err != nil {
		return e.rejected(ctx, tenantID, model.KindServiceAdd, source, humanizeRejection(err), cmd)
	}

	err := e.states.Mutate(ctx, tenantID, func(state *model.BusinessState) error {
		if _, exists := state.FindServiceByName(cmd.Name); exists {
			return fmt.Errorf("%w: a service called %s already exists", apperrors.ErrDuplicate, cmd.Name)
		}
		state.Services[svc.ID] = svc
		return nil
	})
	switch {
	case apperrors.IsDuplicate(err):
		return e.rejected(ctx, tenantID, model.KindServiceAdd, source,
			fmt.Sprintf("You already have a service called \"%s\".", cmd.Name), cmd)
	case err != nil:
		return nil, err
	}

	description := fmt.Sprintf("Added %s at $%.2f for %d minutes", cmd.Name, cmd.Price, cmd.DurationMinutes)
	return e.applied(ctx, tenantID, model.KindServiceAdd, source, description+".", description, map[string]interface{}{
		"service_id": svc.ID,
		"name":       cmd.Name,
		"price":      cmd.Price,
		"duration":   cmd.DurationMinutes,
	})
}

// executeQuery renders a read-only slice of state. Queries are not audited.
func (e *Executor) executeQuery(ctx context.Context, tenantID string, kind model.QueryKind) (*model.CommandResult, error) {
	var reply string
	err := e.states.View(ctx, tenantID, func(state *model.BusinessState) error {
		switch kind {
		case model.QueryServices:
			reply = e.composer.RenderServices(state.ServiceList())
		case model.QueryHours:
			reply = e.composer.RenderHours(state.Hours)
		case model.QueryInventory:
			reply = e.composer.RenderInventory(state.InventoryList())
		case model.QueryPolicies:
			reply = e.composer.RenderPolicies(state.Policies)
		case model.QueryAppointments:
			reply = e.composer.RenderAppointments(upcomingAppointments(state))
		case model.QueryRevenue:
			total, bookings := confirmedRevenue(state)
			reply = e.composer.RenderRevenue(total, bookings)
		default:
			return fmt.Errorf("%w: unknown query kind %s", apperrors.ErrValidation, kind)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &model.CommandResult{Outcome: model.OutcomeApplied, HumanMessage: reply}, nil
}

func (e *Executor) applied(ctx context.Context, tenantID string, kind model.CommandKind, source, humanMessage, description string, diff map[string]interface{}) (*model.CommandResult, error) {
	e.record(ctx, tenantID, string(kind), string(model.OutcomeApplied), description, source, diff)
	return &model.CommandResult{Outcome: model.OutcomeApplied, HumanMessage: humanMessage, Diff: diff}, nil
}

func (e *Executor) rejected(ctx context.Context, tenantID string, kind model.CommandKind, source, humanMessage string, cmd interface{}) (*model.CommandResult, error) {
	e.record(ctx, tenantID, string(kind), string(model.OutcomeRejected), humanMessage, source, map[string]interface{}{"command": cmd})
	return &model.CommandResult{Outcome: model.OutcomeRejected, HumanMessage: humanMessage}, nil
}

func (e *Executor) notFound(ctx context.Context, tenantID string, kind model.CommandKind, source, humanMessage string, cmd interface{}) (*model.CommandResult, error) {
	e.record(ctx, tenantID, string(kind), string(model.OutcomeNotFound), humanMessage, source, map[string]interface{}{"command": cmd})
	return &model.CommandResult{Outcome: model.OutcomeNotFound, HumanMessage: humanMessage}, nil
}

// record appends to the ledger after the state outcome is settled. A ledger
// failure is logged, not surfaced, so the user still gets their reply.
func (e *Executor) record(ctx context.Context, tenantID, action, outcome, description, source string, details map[string]interface{}) {
	if _, err := e.audit.Record(ctx, tenantID, action, outcome, description, source, details); err != nil {
		logger.FromContext(ctx).Error("Failed to record audit entry",
			zap.String("tenant_id", tenantID),
			zap.String("action", action),
			zap.Error(err))
	}
}

// humanizeRejection strips the sentinel prefix from validation errors so the
// reply reads naturally.
func humanizeRejection(err error) string {
	msg := strings.TrimPrefix(err.Error(), apperrors.ErrValidation.Error()+": ")
	return "I can't do that: " + msg + "."
}

func upcomingAppointments(state *model.BusinessState) []model.Appointment {
	out := make([]model.Appointment, 0, len(state.Appointments))
	for _, a := range state.Appointments {
		if a.Status != "cancelled" {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

func confirmedRevenue(state *model.BusinessState) (float64, int) {
	var total float64
	var bookings int
	for _, a := range state.Appointments {
		if a.Status != "confirmed" {
			continue
		}
		if svc, ok := state.Services[a.ServiceID]; ok {
			total += svc.Price
			bookings++
		}
	}
	return total, bookings
}
