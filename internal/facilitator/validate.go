// Package facilitator holds the sticker text heuristics used to give
// participants immediate, advisory feedback while storming. The checks
// are intentionally shallow string matching over Korean and English
// markers; they guide, they never gate.
package facilitator

import (
	"fmt"
	"strings"

	"github.com/stormboard/stormboard/internal/board"
)

// Verdict is the validation hook result for one sticker text.
type Verdict struct {
	Valid      bool
	Issue      string
	Suggestion string
	Message    string
}

// Advice is advisory feedback for a newly created sticker. Kind is either
// "validation" (a rule was broken) or "tip" (a softer nudge).
type Advice struct {
	Kind       string
	Issue      string
	Suggestion string
	Message    string
}

var pastTenseMarkers = []string{"ed", "된", "됨", "함", "했음", "완료", "생성됨", "처리됨"}

var commandMarkers = []string{
	"Create", "Update", "Delete", "Send", "Process",
	"생성", "수정", "삭제", "전송", "처리하",
}

var commandRewrites = [][2]string{
	{"Create", "Created"},
	{"Update", "Updated"},
	{"Delete", "Deleted"},
	{"Send", "Sent"},
	{"생성", "생성됨"},
	{"처리하", "처리됨"},
}

var eventLikeMarkers = []string{"됨", "됐", "ed", "었다", "했다"}

var conditionalMarkers = []string{"하면", "되면", "시", "When", "If", "경우"}

// ValidateEventText checks whether text names a past-tense domain event.
func ValidateEventText(text string) Verdict {
	text = strings.TrimSpace(text)

	isPastTense := containsAny(text, pastTenseMarkers)
	looksLikeCommand := containsAny(text, commandMarkers) && !isPastTense

	if looksLikeCommand {
		suggested := text
		for _, r := range commandRewrites {
			if strings.Contains(text, r[0]) {
				suggested = strings.Replace(text, r[0], r[1], 1)
				break
			}
		}
		return Verdict{
			Valid:      false,
			Issue:      "command_not_event",
			Suggestion: suggested,
			Message:    fmt.Sprintf("This looks like a command. For an event, try: '%s'", suggested),
		}
	}

	if !isPastTense && len([]rune(text)) > 3 {
		suggestion := text + "ed"
		if hasNonASCII(text) {
			suggestion = text + " (완료)"
		}
		return Verdict{
			Valid:      false,
			Issue:      "not_past_tense",
			Suggestion: suggestion,
			Message:    "Events should be in past tense - something that HAS happened",
		}
	}

	return Verdict{Valid: true}
}

// AdviseSticker applies the per-type feedback policy. A nil result means
// the sticker type gets no automatic feedback.
func AdviseSticker(stickerType board.StickerType, text string) *Advice {
	switch stickerType {
	case board.TypeEvent:
		v := ValidateEventText(text)
		if !v.Valid {
			return &Advice{Kind: "validation", Issue: v.Issue, Suggestion: v.Suggestion, Message: v.Message}
		}
		return &Advice{
			Kind:    "tip",
			Message: fmt.Sprintf("좋습니다! \"%s\"는 올바른 이벤트 형식입니다.", text),
		}
	case board.TypeCommand:
		if containsAny(text, eventLikeMarkers) {
			return &Advice{
				Kind:    "validation",
				Issue:   "event_not_command",
				Message: "이것은 이벤트처럼 보입니다. 커맨드는 명령형으로 작성하세요. (예: \"주문 생성\")",
			}
		}
	case board.TypePolicy:
		if !containsAny(text, conditionalMarkers) {
			return &Advice{
				Kind:    "tip",
				Message: "정책은 \"X가 발생하면 Y를 한다\" 형식으로 작성하면 더 명확합니다.",
			}
		}
	}
	return nil
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func hasNonASCII(text string) bool {
	for _, r := range text {
		if r > 127 {
			return true
		}
	}
	return false
}
