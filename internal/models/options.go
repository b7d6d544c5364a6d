package models

import (
	"fmt"
	"math"
	"strings"
)

// ContractMultiplier is the number of shares one option contract controls.
const ContractMultiplier = 100.0

// OptionKind is call or put.
type OptionKind string

const (
	Call OptionKind = "call"
	Put  OptionKind = "put"
)

// ParseOptionKind accepts call/put and the c/p, ce/pe shorthands.
func ParseOptionKind(s string) (OptionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c", "ce":
		return Call, nil
	case "put", "p", "pe":
		return Put, nil
	}
	return "", fmt.Errorf("unknown option kind %q", s)
}

// Action is the side a leg was opened with.
type Action string

const (
	Buy  Action = "buy"
	Sell Action = "sell"
)

// ParseAction accepts buy/sell, case-insensitive.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "b", "long":
		return Buy, nil
	case "sell", "s", "short":
		return Sell, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Valid reports whether a is buy or sell.
func (a Action) Valid() bool {
	return a == Buy || a == Sell
}

// Opposite returns the action that closes a position opened with a.
func (a Action) Opposite() Action {
	if a == Buy {
		return Sell
	}
	return Buy
}

// OptionLeg is one option position within a strategy.
type OptionLeg struct {
	Kind     OptionKind
	Action   Action
	Quantity int
	Strike   float64
	Premium  NullFloat
	Delta    float64
}

// HedgeDelta returns the delta used to size the stock hedge. Puts always
// carry the bearish sign regardless of what the caller supplied.
func (l OptionLeg) HedgeDelta() float64 {
	if l.Kind == Put {
		return -math.Abs(l.Delta)
	}
	return l.Delta
}

// Intrinsic returns the leg's value per share at maturity for underlying s.
func (l OptionLeg) Intrinsic(s float64) float64 {
	if l.Kind == Call {
		return math.Max(s-l.Strike, 0)
	}
	return math.Max(l.Strike-s, 0)
}

// Strategy is an ordered set of one to three legs on a single underlying
// sharing one hedge-delta model.
type Strategy struct {
	Name string
	Legs []OptionLeg
}

// MaxStrategyLegs bounds the number of legs in a Strategy.
const MaxStrategyLegs = 3

// LegSigns holds the signs a leg contributes for a given opening action.
// Option is applied to (value - premium); Hedge to delta*(S - S0) and to
// the effective delta.
type LegSigns struct {
	Option float64
	Hedge  float64
}

// A bought option is hedged with the opposite underlying exposure, a sold
// option with the same.
var legSigns = map[Action]LegSigns{
	Buy:  {Option: +1, Hedge: -1},
	Sell: {Option: -1, Hedge: +1},
}

// SignsFor returns the leg signs for action.
func SignsFor(a Action) (LegSigns, bool) {
	s, ok := legSigns[a]
	return s, ok
}

// ActionPair is the (call, put) opening action combination of a two-leg
// position.
type ActionPair struct {
	Call Action
	Put  Action
}

func (p ActionPair) String() string {
	return fmt.Sprintf("%s call / %s put", p.Call, p.Put)
}

// PairSigns is one row of the canonical four-way sign table.
type PairSigns struct {
	CallOption float64
	PutOption  float64
	CallHedge  float64
	PutHedge   float64
}

var pairSigns = map[ActionPair]PairSigns{
	{Call: Buy, Put: Buy}:   {CallOption: +1, PutOption: +1, CallHedge: -1, PutHedge: -1},
	{Call: Buy, Put: Sell}:  {CallOption: +1, PutOption: -1, CallHedge: -1, PutHedge: +1},
	{Call: Sell, Put: Buy}:  {CallOption: -1, PutOption: +1, CallHedge: +1, PutHedge: -1},
	{Call: Sell, Put: Sell}: {CallOption: -1, PutOption: -1, CallHedge: +1, PutHedge: +1},
}

// SignsForPair returns the sign table row for p.
func SignsForPair(p ActionPair) (PairSigns, bool) {
	s, ok := pairSigns[p]
	return s, ok
}

// ActionPairs lists the four canonical combinations in table order.
func ActionPairs() []ActionPair {
	return []ActionPair{
		{Call: Buy, Put: Buy},
		{Call: Buy, Put: Sell},
		{Call: Sell, Put: Buy},
		{Call: Sell, Put: Sell},
	}
}

// PriceGrid is the set of underlying prices a payoff is evaluated on.
type PriceGrid struct {
	Min  float64
	Max  float64
	Step float64
}

// Len returns the number of grid points, both ends inclusive.
func (g PriceGrid) Len() int {
	if g.Step <= 0 || g.Max < g.Min {
		return 0
	}
	return int(math.Floor((g.Max-g.Min)/g.Step+1e-9)) + 1
}

// At returns the i-th grid point.
func (g PriceGrid) At(i int) float64 {
	return g.Min + float64(i)*g.Step
}

// Points materialises the grid.
func (g PriceGrid) Points() []float64 {
	n := g.Len()
	out := make([]float64, n)
	for i := range out {
		out[i] = g.At(i)
	}
	return out
}

// PayoffCurve holds payoff values Y (currency, at ContractMultiplier) at
// underlying prices S.
type PayoffCurve struct {
	S []float64
	Y []float64
}

// Interval is a profitable price range. A nil bound is unbounded; the
// lower bound of an interval that starts at zero is reported as 0.
type Interval struct {
	Lower *float64 `json:"lower"`
	Upper *float64 `json:"upper"`
}

func (iv Interval) String() string {
	lo, hi := "0", "∞"
	if iv.Lower != nil {
		lo = formatBound(*iv.Lower)
	}
	if iv.Upper != nil {
		hi = formatBound(*iv.Upper)
	}
	return fmt.Sprintf("(%s, %s)", lo, hi)
}

// Region is the set of prices at maturity for which a payoff is positive.
type Region struct {
	Intervals []Interval `json:"intervals"`
	Never     bool       `json:"never"`
}

func (r Region) String() string {
	if r.Never || len(r.Intervals) == 0 {
		return "never profitable"
	}
	parts := make([]string, len(r.Intervals))
	for i, iv := range r.Intervals {
		parts[i] = iv.String()
	}
	return strings.Join(parts, " and ")
}

// Everywhere reports whether the region is (0, ∞).
func (r Region) Everywhere() bool {
	return len(r.Intervals) == 1 && r.Intervals[0].Lower == nil && r.Intervals[0].Upper == nil
}

func formatBound(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

// Greeks holds option sensitivities.
type Greeks struct {
	Delta float64
	Gamma float64
	Vega  float64
	Theta float64
}
