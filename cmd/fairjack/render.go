package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lox/fairjack/internal/deck"
	"github.com/lox/fairjack/internal/game"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Width(8)

	redCardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	blackCardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15"))

	winStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))

	lossStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9"))

	tieStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("11"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

func renderCards(cards []deck.Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		style := blackCardStyle
		if c.Suit.IsRed() {
			style = redCardStyle
		}
		parts[i] = style.Render(c.String())
	}
	return strings.Join(parts, " ")
}

func renderHand(label string, h game.HandView) string {
	value := fmt.Sprintf("%d", h.Value)
	if h.Soft {
		value += " soft"
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		labelStyle.Render(label),
		renderCards(h.Cards),
		dimStyle.Render("  ("+value+")"))
}

func renderOutcome(o game.Outcome) string {
	switch o {
	case game.PlayerWon:
		return winStyle.Render("Player wins")
	case game.DealerWon:
		return lossStyle.Render("Dealer wins")
	case game.Tie:
		return tieStyle.Render("Push")
	default:
		return dimStyle.Render("In play")
	}
}

// renderView draws a game as a bordered panel.
func renderView(v game.View) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Game "+v.ID),
		"",
		renderHand("Dealer", v.DealerHand),
		renderHand("Player", v.PlayerHand),
		"",
		fmt.Sprintf("%s  wager %d  height %d", renderOutcome(v.Outcome), v.Wager, v.LastActionHeight),
		dimStyle.Render("commitment "+v.SequenceCommitment.String()),
	)
	return boxStyle.Render(body)
}
