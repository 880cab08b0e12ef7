package domain

// CheckKind is the discriminator used by mission content
type CheckKind string

const (
	KindPositionMatch   CheckKind = "position_match"
	KindCodeContains    CheckKind = "code_contains"
	KindCodeAbsent      CheckKind = "code_absent"
	KindCodeMatches     CheckKind = "code_matches"
	KindOutputContains  CheckKind = "output_contains"
	KindOutputMatches   CheckKind = "output_matches"
	KindBodyCount       CheckKind = "body_count"
	KindFunctionPlotted CheckKind = "function_plotted"
	KindPointMarked     CheckKind = "point_marked"
)

// KnownKinds lists every check kind the validator can evaluate
func KnownKinds() []CheckKind {
	return []CheckKind{
		KindPositionMatch,
		KindCodeContains,
		KindCodeAbsent,
		KindCodeMatches,
		KindOutputContains,
		KindOutputMatches,
		KindBodyCount,
		KindFunctionPlotted,
		KindPointMarked,
	}
}

// Check is one verifiable condition of a mission.
//
// The set of implementations is closed: only types in this package satisfy
// the interface, and the validator switches over all of them.
type Check interface {
	Kind() CheckKind
	Feedback() Messages
	isCheck()
}

// Messages are the mission-authored feedback lines for a check
type Messages struct {
	Success string `json:"message_success"`
	Fail    string `json:"message_fail"`
}

// Feedback returns the check's feedback messages
func (m Messages) Feedback() Messages { return m }

// StarBands maps a distance to a star tier: distance <= Three earns 3 stars,
// distance <= Two earns 2, anything else that passes earns 1.
// Zero values mean "use the default".
type StarBands struct {
	Three float64 `json:"three,omitempty"`
	Two   float64 `json:"two,omitempty"`
}

// DefaultThreeStarDistance is used when a check does not declare its own band
const DefaultThreeStarDistance = 5.0

// Resolve fills unset bands. The two-star band defaults to the check tolerance.
func (b StarBands) Resolve(tolerance float64) StarBands {
	if b.Three <= 0 {
		b.Three = DefaultThreeStarDistance
	}
	if b.Two <= 0 {
		b.Two = tolerance
	}
	return b
}

// Stars returns the tier earned at distance d
func (b StarBands) Stars(d float64) Score {
	switch {
	case d <= b.Three:
		return ScoreThree
	case d <= b.Two:
		return ScoreTwo
	default:
		return ScoreOne
	}
}

// PositionMatch passes when the first movable body ends within Tolerance of the target
type PositionMatch struct {
	Messages
	TargetX   float64
	TargetY   float64
	Tolerance float64
	Stars     StarBands
	// NoState is shown when the script never produced a world snapshot
	NoState string
}

// CodeContains passes when the source contains Text
type CodeContains struct {
	Messages
	Text string
}

// CodeAbsent passes when the source does not contain Text (e.g. the "___" placeholder)
type CodeAbsent struct {
	Messages
	Text string
}

// CodeMatches passes when the source matches the RE2 Pattern
type CodeMatches struct {
	Messages
	Pattern string
}

// OutputContains passes when any console line contains Text
type OutputContains struct {
	Messages
	Text string
}

// OutputMatches passes when any console line matches the RE2 Pattern
type OutputMatches struct {
	Messages
	Pattern string
}

// BodyCount passes when the world holds at least Min bodies of BodyType (any type when empty)
type BodyCount struct {
	Messages
	Min      int
	BodyType string
	NoState  string
}

// FunctionPlotted passes when the canvas holds a function matching Expression
// and/or Name with at least MinPoints sampled points
type FunctionPlotted struct {
	Messages
	Expression string
	Name       string
	MinPoints  int
	NoState    string
}

// PointMarked passes when a marked canvas point lies within Tolerance of (X, Y)
// and carries Label when one is required
type PointMarked struct {
	Messages
	X         float64
	Y         float64
	Tolerance float64
	Label     string
	Stars     StarBands
	NoState   string
}

// UnknownCheck preserves a check whose type the catalog did not recognize.
// It always fails validation.
type UnknownCheck struct {
	Messages
	Type string
}

func (PositionMatch) Kind() CheckKind   { return KindPositionMatch }
func (CodeContains) Kind() CheckKind    { return KindCodeContains }
func (CodeAbsent) Kind() CheckKind      { return KindCodeAbsent }
func (CodeMatches) Kind() CheckKind     { return KindCodeMatches }
func (OutputContains) Kind() CheckKind  { return KindOutputContains }
func (OutputMatches) Kind() CheckKind   { return KindOutputMatches }
func (BodyCount) Kind() CheckKind       { return KindBodyCount }
func (FunctionPlotted) Kind() CheckKind { return KindFunctionPlotted }
func (PointMarked) Kind() CheckKind     { return KindPointMarked }
func (c UnknownCheck) Kind() CheckKind  { return CheckKind(c.Type) }

func (PositionMatch) isCheck()   {}
func (CodeContains) isCheck()    {}
func (CodeAbsent) isCheck()      {}
func (CodeMatches) isCheck()     {}
func (OutputContains) isCheck()  {}
func (OutputMatches) isCheck()   {}
func (BodyCount) isCheck()       {}
func (FunctionPlotted) isCheck() {}
func (PointMarked) isCheck()     {}
func (UnknownCheck) isCheck()    {}
