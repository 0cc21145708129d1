package stats

import (
	"math"
	"time"
)

// Energy cost constants, in joules per token.
const (
	energyPerInputToken  = 0.0003
	energyPerOutputToken = 0.0006
	joulesPerWh          = 3600
)

// recentWindow is the lookback window for the "recent" split.
const recentWindow = 7 * 24 * time.Hour

// Message is one captured chat message, as read from the message log.
type Message struct {
	ChatID    string
	Role      string // "user" or "assistant"
	Content   string
	Model     string
	CreatedAt time.Time
}

// Summary is the aggregated usage report returned to clients.
type Summary struct {
	TotalChats         int     `json:"total_chats"`
	RecentChats        int     `json:"recent_chats"`
	TotalMessages      int     `json:"total_messages"`
	RecentMessages     int     `json:"recent_messages"`
	AvgMessagesPerChat float64 `json:"avg_messages_per_chat"`
	InputTokens        int     `json:"input_tokens"`
	OutputTokens       int     `json:"output_tokens"`
	RecentInputTokens  int     `json:"recent_input_tokens"`
	RecentOutputTokens int     `json:"recent_output_tokens"`
	EnergyWh           float64 `json:"energy_wh"`
	EnergyEquivalent   string  `json:"energy_equivalent"`
}

// Aggregate computes descriptive statistics over a user's message log.
// totalChats may exceed the number of distinct chats seen in messages when
// chats exist with no captured messages.
func Aggregate(totalChats int, chatCreatedAts []time.Time, messages []Message, now time.Time) Summary {
	cutoff := now.Add(-recentWindow)

	s := Summary{
		TotalChats:    totalChats,
		TotalMessages: len(messages),
	}

	for _, t := range chatCreatedAts {
		if t.After(cutoff) {
			s.RecentChats++
		}
	}

	for _, m := range messages {
		tokens := EstimateTokens(m.Content, m.Model)
		recent := m.CreatedAt.After(cutoff)
		if recent {
			s.RecentMessages++
		}

		if m.Role == "user" {
			s.InputTokens += tokens
			if recent {
				s.RecentInputTokens += tokens
			}
		} else {
			s.OutputTokens += tokens
			if recent {
				s.RecentOutputTokens += tokens
			}
		}
	}

	if s.TotalChats > 0 {
		s.AvgMessagesPerChat = round2(float64(s.TotalMessages) / float64(s.TotalChats))
	}

	joules := float64(s.InputTokens)*energyPerInputToken + float64(s.OutputTokens)*energyPerOutputToken
	s.EnergyWh = round2(joules / joulesPerWh)
	s.EnergyEquivalent = energyEquivalent(s.EnergyWh)

	return s
}

// energyEquivalent translates a watt-hour figure into a tangible comparison.
func energyEquivalent(wh float64) string {
	switch {
	case wh < 0.05:
		return "like lighting an LED for a few seconds"
	case wh < 0.2:
		return "like lighting an LED for a minute"
	case wh < 1:
		return "like a minute of streaming video"
	default:
		return "like a few minutes of laptop use"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
