// Package parser turns free-text messages into typed commands using an
// ordered rule table. Parsing is total: any input yields exactly one command
// variant, with Unrecognized as the catch-all.
package parser

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/utils"
)

var (
	amountRe   = regexp.MustCompile(`\$(\d+(?:\.\d{1,2})?)`)
	durationRe = regexp.MustCompile(`(\d+)\s*(?:minutes|mins|min)\b`)
	helpRe     = regexp.MustCompile(`\b(help|commands)\b`)
	timeRangeRe = regexp.MustCompile(
		`(\d{1,2}(?::\d{2})?\s*(?:am|pm)?)\s*(?:to|until|till|-)\s*(\d{1,2}(?::\d{2})?\s*(?:am|pm)?)`)
	addNameRe = regexp.MustCompile(`\badd\s+(?:new\s+)?(?:service:?\s+)?(.+?)\s+(?:for|at)\s+\$`)
)

// input is one message prepared for rule matching.
type input struct {
	text         string
	lower        string
	serviceNames []string // tenant's current service names, longest first
}

// rule is one entry in the match table. Rules are tried in table order and
// the first hit wins; a rule that triggers but cannot produce a complete
// command returns Unrecognized rather than passing to later rules.
type rule struct {
	name  string
	match func(in *input) (model.Command, bool)
}

// Parser is a deterministic rule-table command parser.
type Parser struct {
	rules []rule
}

// New builds the parser with its fixed rule ordering.
func New() *Parser {
	return &Parser{rules: []rule{
		{name: "clear_chat", match: matchClearChat},
		{name: "help", match: matchHelp},
		{name: "price_update", match: matchPriceUpdate},
		{name: "hours_update", match: matchHoursUpdate},
		{name: "service_add", match: matchServiceAdd},
		{name: "query", match: matchQuery},
	}}
}

// RuleNames exposes the table ordering for tests and diagnostics.
func (p *Parser) RuleNames() []string {
	names := make([]string, len(p.rules))
	for i, r := range p.rules {
		names[i] = r.name
	}
	return names
}

// Parse maps text to a command. serviceNames is the tenant's current service
// list, needed to resolve price-update targets. Never returns an error and
// never panics: unparseable input yields Unrecognized.
func (p *Parser) Parse(text string, serviceNames []string) model.Command {
	names := make([]string, len(serviceNames))
	copy(names, serviceNames)
	// Longest name first so "Deep Tissue Massage" beats "Massage"
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	in := &input{
		text:         text,
		lower:        strings.ToLower(text),
		serviceNames: names,
	}

	for _, r := range p.rules {
		if cmd, ok := r.match(in); ok {
			return cmd
		}
	}
	return model.Unrecognized(text)
}

func matchClearChat(in *input) (model.Command, bool) {
	if strings.Contains(in.lower, "clear") &&
		(strings.Contains(in.lower, "chat") || strings.Contains(in.lower, "conversation")) {
		return model.Command{Kind: model.KindClearChat, RawText: in.text}, true
	}
	return model.Command{}, false
}

func matchHelp(in *input) (model.Command, bool) {
	if helpRe.MatchString(in.lower) {
		return model.Command{Kind: model.KindHelp}, true
	}
	return model.Command{}, false
}

// matchPriceUpdate handles "increase X from $a to $b" and
// "change X price to $b". The target must resolve to a known service name:
// a verb+amount match with no recognizable service never applies blindly.
func matchPriceUpdate(in *input) (model.Command, bool) {
	hasVerb := strings.Contains(in.lower, "increase") ||
		strings.Contains(in.lower, "decrease") ||
		((strings.Contains(in.lower, "change") || strings.Contains(in.lower, "update")) &&
			strings.Contains(in.lower, "price"))
	if !hasVerb {
		return model.Command{}, false
	}

	amounts := amountRe.FindAllStringSubmatch(in.lower, -1)
	if len(amounts) == 0 {
		return model.Command{}, false
	}

	serviceName := ""
	for _, name := range in.serviceNames {
		if name != "" && strings.Contains(in.lower, strings.ToLower(name)) {
			serviceName = name
			break
		}
	}
	if serviceName == "" {
		// Verb and amounts matched but no known service: refusing here keeps
		// a partial match from silently updating the wrong service.
		return model.Unrecognized(in.text), true
	}

	switch {
	case len(amounts) >= 2:
		oldPrice, err1 := strconv.ParseFloat(amounts[0][1], 64)
		newPrice, err2 := strconv.ParseFloat(amounts[1][1], 64)
		if err1 != nil || err2 != nil {
			return model.Unrecognized(in.text), true
		}
		return model.Command{Kind: model.KindPriceUpdate, PriceUpdate: &model.PriceUpdate{
			ServiceName: serviceName,
			OldPrice:    oldPrice,
			NewPrice:    newPrice,
		}}, true
	default:
		// Single-amount form: "change <service> price to $X". The executor
		// fills OldPrice from current state.
		newPrice, err := strconv.ParseFloat(amounts[0][1], 64)
		if err != nil {
			return model.Unrecognized(in.text), true
		}
		return model.Command{Kind: model.KindPriceUpdate, PriceUpdate: &model.PriceUpdate{
			ServiceName: serviceName,
			OldPrice:    -1,
			NewPrice:    newPrice,
		}}, true
	}
}

// matchHoursUpdate handles "close friday for a private event" and
// "open saturday 9 to 5" style messages. A parseable time range wins over
// closure vocabulary when both are present.
func matchHoursUpdate(in *input) (model.Command, bool) {
	hasVocab := strings.Contains(in.lower, "hours") ||
		strings.Contains(in.lower, "open") ||
		strings.Contains(in.lower, "close")
	if !hasVocab {
		return model.Command{}, false
	}

	var day model.Weekday
	for _, d := range model.Weekdays {
		if strings.Contains(in.lower, string(d)) {
			day = d
			break
		}
	}
	if day == "" {
		return model.Command{}, false
	}

	if open, close_, ok := parseTimeRange(in.lower); ok {
		return model.Command{Kind: model.KindHoursUpdate, HoursUpdate: &model.HoursUpdate{
			Day:   day,
			Open:  open,
			Close: close_,
		}}, true
	}

	if strings.Contains(in.lower, "closed") || strings.Contains(in.lower, "event") ||
		strings.Contains(in.lower, "close ") || strings.HasSuffix(in.lower, "close") {
		return model.Command{Kind: model.KindHoursUpdate, HoursUpdate: &model.HoursUpdate{
			Day:      day,
			IsClosed: true,
		}}, true
	}

	// Hours vocabulary with a weekday but no usable pattern
	return model.Unrecognized(in.text), true
}

func parseTimeRange(lower string) (utils.ClockTime, utils.ClockTime, bool) {
	m := timeRangeRe.FindStringSubmatch(lower)
	if m == nil {
		return 0, 0, false
	}
	open, err1 := utils.ParseClock(m[1])
	close_, err2 := utils.ParseClock(m[2])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	// "9 to 5" means 09:00-17:00: without a meridiem, a close at or before
	// the open and within the morning range reads as afternoon.
	if close_ <= open && close_ < 12*60 && !strings.Contains(m[2], "am") {
		close_ += 12 * 60
	}
	return open, close_, true
}

// matchServiceAdd requires both a price and a duration; "add with unknown
// price" is never produced.
func matchServiceAdd(in *input) (model.Command, bool) {
	if !strings.Contains(in.lower, "add") {
		return model.Command{}, false
	}
	if !strings.Contains(in.lower, "service") && !strings.Contains(in.lower, "menu") {
		return model.Command{}, false
	}

	amount := amountRe.FindStringSubmatch(in.lower)
	duration := durationRe.FindStringSubmatch(in.lower)
	if amount == nil || duration == nil {
		return model.Unrecognized(in.text), true
	}

	price, err1 := strconv.ParseFloat(amount[1], 64)
	minutes, err2 := strconv.Atoi(duration[1])
	if err1 != nil || err2 != nil {
		return model.Unrecognized(in.text), true
	}

	name := extractServiceName(in.text)
	if name == "" {
		return model.Unrecognized(in.text), true
	}

	return model.Command{Kind: model.KindServiceAdd, ServiceAdd: &model.ServiceAdd{
		Name:            name,
		Price:           price,
		DurationMinutes: minutes,
	}}, true
}

func extractServiceName(text string) string {
	m := addNameRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return ""
	}
	name := strings.TrimSpace(m[1])
	for _, noise := range []string{"to the menu", "to menu", "a service", "service"} {
		name = strings.TrimSpace(strings.TrimSuffix(name, noise))
	}
	if name == "" {
		return ""
	}
	// Recover original casing from the source text
	idx := strings.Index(strings.ToLower(text), name)
	if idx >= 0 {
		return strings.TrimSpace(text[idx : idx+len(name)])
	}
	return name
}

var queryPhrases = []struct {
	keyword string
	kind    model.QueryKind
}{
	{"service", model.QueryServices},
	{"hours", model.QueryHours},
	{"schedule", model.QueryAppointments},
	{"appointment", model.QueryAppointments},
	{"inventory", model.QueryInventory},
	{"stock", model.QueryInventory},
	{"revenue", model.QueryRevenue},
	{"sales", model.QueryRevenue},
	{"polic", model.QueryPolicies},
	{"terms", model.QueryPolicies},
}

func matchQuery(in *input) (model.Command, bool) {
	if !strings.Contains(in.lower, "show") && !strings.Contains(in.lower, "list") {
		return model.Command{}, false
	}
	for _, q := range queryPhrases {
		if strings.Contains(in.lower, q.keyword) {
			return model.Command{Kind: model.KindQuery, Query: q.kind}, true
		}
	}
	return model.Command{}, false
}
