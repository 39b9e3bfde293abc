package toolloop

import "github.com/agentforge/agentforge/llm/model"

// SlidingWindow returns a HistoryTransformer that bounds history to the most
// recent maxMessages entries (§8 Testable Properties scenario 5). When
// preserveSystemMessages is true, every SystemMessage is kept regardless of
// position and counts against maxMessages; the remaining slots are filled
// with the most recent non-system messages, in their original order. A
// history already at or under maxMessages is returned unchanged.
func SlidingWindow(maxMessages int, preserveSystemMessages bool) HistoryTransformer {
	return func(history []model.Message) []model.Message {
		if maxMessages <= 0 || len(history) <= maxMessages {
			return history
		}

		var systemMsgs, rest []model.Message
		if preserveSystemMessages {
			for _, m := range history {
				if m.Role == model.RoleSystem {
					systemMsgs = append(systemMsgs, m)
				} else {
					rest = append(rest, m)
				}
			}
		} else {
			rest = history
		}

		keep := maxMessages - len(systemMsgs)
		if keep < 0 {
			keep = 0
		}
		if keep > len(rest) {
			keep = len(rest)
		}
		tail := rest[len(rest)-keep:]

		out := make([]model.Message, 0, len(systemMsgs)+len(tail))
		out = append(out, systemMsgs...)
		out = append(out, tail...)
		return out
	}
}
