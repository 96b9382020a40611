package audit

import "context"

// TurnContext is the classification a turn ran with. The assistant attaches
// it so events raised deeper in the dialogue carry the fired factors.
type TurnContext struct {
	Intent        string
	Confidence    float64
	HasConfidence bool
	Factors       []string
}

type turnKey struct{}

// WithTurn returns ctx carrying tc.
func WithTurn(ctx context.Context, tc TurnContext) context.Context {
	return context.WithValue(ctx, turnKey{}, tc)
}

func turnFromContext(ctx context.Context) (TurnContext, bool) {
	tc, ok := ctx.Value(turnKey{}).(TurnContext)
	return tc, ok
}
