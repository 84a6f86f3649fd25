package tutor

// Fixed user-facing copy. These exact sentences are the terminal outcomes
// of the turn state machine; raw model output or errors are never shown in
// their place.
const (
	MsgMissingSource  = "The book file is missing. Please upload it first."
	MsgNoDocs         = "I couldn't find anything about that part of the story 😊"
	MsgUnsafePassages = "That part of the story isn't for our age group 😊"
	MsgNoEvidence     = "I'm not sure from this part of the book 🤔"
	MsgSynthesisRetry = "I'm having trouble thinking right now — let's try again! 😊"
	MsgUnsafeResponse = "Let's switch to something better for our age group 📚✨"
	MsgSummaryRetry   = "I'm having trouble summarizing right now — let's try again! 😊"
	MsgUnsafeSummary  = "That summary isn't suitable for our age group 🌱"
	MsgEmptyBook      = "I couldn't read the book yet — please re-upload it."
)

// summaryKeywords trigger whole-book summary mode on case-insensitive
// substring match. Deliberately coarse; plain containment, no stemming.
var summaryKeywords = []string{
	"summary",
	"summarize",
	"overall",
	"main idea",
	"whole book",
	"entire book",
	"plot",
	"story about",
	"explain the book",
	"what is the book about",
}
