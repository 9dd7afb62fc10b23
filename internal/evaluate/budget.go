package evaluate

import (
	"github.com/issuelens/issuelens/internal/oputil"
)

// DefaultWindow is the model context window assumed when none is given.
const DefaultWindow = 12000

// Budget is the token allocation for one evaluation call. Out of the window,
// a quarter is slack; the rest splits into request, response, and a second
// slack share. The batching threshold leaves a further quarter of the
// request budget unused after static prompt text is subtracted.
type Budget struct {
	Window    int `json:"window"`
	Request   int `json:"request"`
	Response  int `json:"response"`
	Slack     int `json:"slack"`
	Static    int `json:"static"`
	Threshold int `json:"threshold"`
}

// ComputeBudget derives the allocation for a window and a measured static
// prompt size. It fails when the static prompt leaves no room for cases.
func ComputeBudget(window, static int) (Budget, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	outerSlack := window / 4
	remaining := window - outerSlack

	b := Budget{
		Window:   window,
		Request:  remaining / 4,
		Response: remaining / 2,
		Slack:    outerSlack + remaining/4,
		Static:   static,
	}
	avail := b.Request - static
	b.Threshold = avail * 3 / 4
	if b.Threshold < 1 {
		return b, oputil.New(oputil.KindInputMalformed,
			"window %d leaves no case budget after a %d-token prompt template", window, static).
			WithSuggestion("raise --window or trim the rubric and knowledge base")
	}
	return b, nil
}
