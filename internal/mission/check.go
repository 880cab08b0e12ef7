package mission

import "github.com/felixgeelhaar/pylab/internal/domain"

// CheckFile is the flat YAML form of a check. Only the fields that belong
// to the declared type are read.
type CheckFile struct {
	Type           string `yaml:"type"`
	MessageSuccess string `yaml:"message_success"`
	MessageFail    string `yaml:"message_fail"`
	MessageNoState string `yaml:"message_no_state"`

	// position_match, point_marked
	TargetX   float64 `yaml:"target_x"`
	TargetY   float64 `yaml:"target_y"`
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	Tolerance float64 `yaml:"tolerance"`
	Label     string  `yaml:"label"`
	Stars     struct {
		Three float64 `yaml:"three"`
		Two   float64 `yaml:"two"`
	} `yaml:"stars"`

	// code_*, output_*
	Text    string `yaml:"text"`
	Pattern string `yaml:"pattern"`

	// body_count
	Min      int    `yaml:"min"`
	BodyType string `yaml:"body_type"`

	// function_plotted
	Expression string `yaml:"expression"`
	Name       string `yaml:"name"`
	MinPoints  int    `yaml:"min_points"`
}

func (cf CheckFile) toDomain() domain.Check {
	msgs := domain.Messages{Success: cf.MessageSuccess, Fail: cf.MessageFail}
	bands := domain.StarBands{Three: cf.Stars.Three, Two: cf.Stars.Two}

	switch domain.CheckKind(cf.Type) {
	case domain.KindPositionMatch:
		return domain.PositionMatch{
			Messages:  msgs,
			TargetX:   cf.TargetX,
			TargetY:   cf.TargetY,
			Tolerance: cf.Tolerance,
			Stars:     bands,
			NoState:   cf.MessageNoState,
		}
	case domain.KindCodeContains:
		return domain.CodeContains{Messages: msgs, Text: cf.Text}
	case domain.KindCodeAbsent:
		return domain.CodeAbsent{Messages: msgs, Text: cf.Text}
	case domain.KindCodeMatches:
		return domain.CodeMatches{Messages: msgs, Pattern: cf.Pattern}
	case domain.KindOutputContains:
		return domain.OutputContains{Messages: msgs, Text: cf.Text}
	case domain.KindOutputMatches:
		return domain.OutputMatches{Messages: msgs, Pattern: cf.Pattern}
	case domain.KindBodyCount:
		return domain.BodyCount{Messages: msgs, Min: cf.Min, BodyType: cf.BodyType, NoState: cf.MessageNoState}
	case domain.KindFunctionPlotted:
		return domain.FunctionPlotted{
			Messages:   msgs,
			Expression: cf.Expression,
			Name:       cf.Name,
			MinPoints:  cf.MinPoints,
			NoState:    cf.MessageNoState,
		}
	case domain.KindPointMarked:
		return domain.PointMarked{
			Messages:  msgs,
			X:         cf.X,
			Y:         cf.Y,
			Tolerance: cf.Tolerance,
			Label:     cf.Label,
			Stars:     bands,
			NoState:   cf.MessageNoState,
		}
	default:
		return domain.UnknownCheck{Messages: msgs, Type: cf.Type}
	}
}
