package channel

import (
	"fmt"
	"sort"
	"strings"

	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
)

// Composer builds every user-facing reply. All failure paths resolve to one
// of these templates at the channel boundary; raw internal error text never
// reaches an end user.
type Composer struct{}

// NewComposer returns the reply composer.
func NewComposer() *Composer {
	return &Composer{}
}

// Welcome is the fixed reply for senders with no registered tenant.
func (c *Composer) Welcome() string {
	return "Welcome to Chathy! I'm your business assistant. " +
		"To get started, please register your business at our website, or type \"help\" to see what I can do."
}

// Help summarizes the supported commands.
func (c *Composer) Help() string {
	return strings.Join([]string{
		"Here's what I can do:",
		"",
		"Price updates:",
		"- \"Increase [service] from $[old] to $[new]\"",
		"- \"Change [service] price to $[amount]\"",
		"",
		"Hours:",
		"- \"Close [day] for a private event\"",
		"- \"Open [day] from [time] to [time]\"",
		"",
		"Services:",
		"- \"Add [name] to the menu for $[price], [duration] minutes\"",
		"",
		"Business info:",
		"- \"Show services\", \"Show hours\", \"Show inventory\"",
		"- \"Show appointments\", \"Show revenue\", \"Show policies\"",
		"",
		"Chat:",
		"- \"Clear chat\" to start a new conversation",
		"",
		"Or just ask me anything about your business.",
	}, "\n")
}

// ChatCleared confirms a conversation reset.
func (c *Composer) ChatCleared() string {
	return "Chat cleared! You can start fresh with any questions about your business."
}

// InternalError is the generic apology for unexpected processing failures.
func (c *Composer) InternalError() string {
	return "Sorry, I'm having trouble processing your request right now. " +
		"Please try again in a few moments, or type \"help\" for the commands I understand."
}

// FallbackUnavailable is the reply when the conversational backend is
// unreachable. Distinct from FallbackBadResponse for support triage.
func (c *Composer) FallbackUnavailable() string {
	return "Connection error: I'm having trouble reaching the assistant service. " +
		"Please try again later, or use a direct command like \"show services\"."
}

// FallbackBadResponse is the reply when the backend answered but with an
// error or an invalid body.
func (c *Composer) FallbackBadResponse() string {
	return "Backend error: the assistant service returned an unexpected response. " +
		"Please try again, or use a direct command like \"show services\"."
}

// RenderServices formats the service list for a query reply.
func (c *Composer) RenderServices(services []model.Service) string {
	if len(services) == 0 {
		return "You have no services yet. Try \"Add [name] to the menu for $[price], [duration] minutes\"."
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })

	var b strings.Builder
	b.WriteString("Your services:\n")
	for _, s := range services {
		if !s.IsActive {
			continue
		}
		fmt.Fprintf(&b, "- %s: $%.2f (%d min)\n", s.Name, s.Price, s.DurationMinutes)
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderHours formats the weekly hours for a query reply.
func (c *Composer) RenderHours(hours map[model.Weekday]model.DayHours) string {
	var b strings.Builder
	b.WriteString("Your business hours:\n")
	for _, day := range model.Weekdays {
		h, ok := hours[day]
		switch {
		case !ok:
			fmt.Fprintf(&b, "- %s: not set\n", day)
		case h.IsClosed:
			fmt.Fprintf(&b, "- %s: closed\n", day)
		default:
			fmt.Fprintf(&b, "- %s: %s to %s\n", day, h.Open, h.Close)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderInventory formats stock levels, flagging low items.
func (c *Composer) RenderInventory(items []model.InventoryItem) string {
	if len(items) == 0 {
		return "No inventory items tracked."
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	var b strings.Builder
	b.WriteString("Your inventory:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- %s: %d %s", item.Name, item.Quantity, item.Unit)
		if item.Quantity <= item.LowStockThreshold {
			b.WriteString(" (running low)")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderPolicies formats the business policies.
func (c *Composer) RenderPolicies(p model.Policies) string {
	return strings.TrimRight(fmt.Sprintf(
		"Your policies:\n- Cancellation: %s\n- Refund: %s\n- Late arrival: %s\n- Deposit: %s",
		orUnset(p.Cancellation), orUnset(p.Refund), orUnset(p.LateArrival), orUnset(p.Deposit)), "\n")
}

// RenderAppointments formats upcoming bookings.
func (c *Composer) RenderAppointments(appointments []model.Appointment) string {
	if len(appointments) == 0 {
		return "No upcoming appointments."
	}

	var b strings.Builder
	b.WriteString("Your appointments:\n")
	for _, a := range appointments {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", a.ScheduledAt.Format("Mon Jan 2 15:04"), a.ClientName, a.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderRevenue formats a simple revenue estimate from confirmed appointments.
func (c *Composer) RenderRevenue(total float64, bookings int) string {
	return fmt.Sprintf("Estimated revenue from %d confirmed appointments: $%.2f", bookings, total)
}

func orUnset(s string) string {
	if s == "" {
		return "not set"
	}
	return s
}
