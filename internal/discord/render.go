package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/stemsi/proctor-bot/internal/model"
	"github.com/stemsi/proctor-bot/internal/service"
)

// Discord limits.
const (
	maxButtons       = 25
	buttonsPerRow    = 5
	maxButtonLabel   = 80
	menuIntroMessage = "Select a certification to start."
)

// QuestionPrompt renders the message body for a question.
func QuestionPrompt(view *service.QuestionView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", view.CertificationName)
	fmt.Fprintf(&b, "Question %d/%d\n", view.Number, view.Total)
	b.WriteString(view.Text)
	b.WriteString("\n\n")
	for i, c := range view.Choices {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s) %s", c.Letter, c.Text)
	}
	return b.String()
}

// AnswerButtons renders one lettered button per choice.
func AnswerButtons(view *service.QuestionView) []discordgo.MessageComponent {
	buttons := make([]discordgo.Button, 0, len(view.Choices))
	for _, c := range view.Choices {
		buttons = append(buttons, discordgo.Button{
			Label:    c.Letter,
			Style:    discordgo.SecondaryButton,
			CustomID: AnswerID(view.SessionID, c.AnswerID),
		})
	}
	return rows(buttons)
}

// CertificationMenu renders the start buttons for up to 25 certifications.
func CertificationMenu(certs []model.Certification) (string, []discordgo.MessageComponent) {
	shown := certs
	if len(shown) > maxButtons {
		shown = shown[:maxButtons]
	}

	buttons := make([]discordgo.Button, 0, len(shown))
	for _, c := range shown {
		buttons = append(buttons, discordgo.Button{
			Label:    truncate(c.Name, maxButtonLabel),
			Style:    discordgo.PrimaryButton,
			CustomID: StartID(c.ID),
		})
	}

	content := menuIntroMessage
	if len(certs) > maxButtons {
		content += fmt.Sprintf(" Showing first %d of %d.", maxButtons, len(certs))
	}
	return content, rows(buttons)
}

// ResultMessage renders the final score.
func ResultMessage(res *service.ExamResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** completed!\n", res.CertificationName)
	fmt.Fprintf(&b, "Score: %d/%d (%d%%).\n", res.CorrectCount, res.QuestionCount, res.ScorePercent)
	switch {
	case !res.Passed:
		fmt.Fprintf(&b, "Status: Not passed. Required: %d%%.", res.PassingScorePercent)
	case res.RewardFailed:
		b.WriteString("Status: Passed.\n")
		b.WriteString(MsgRewardFailed)
	default:
		fmt.Fprintf(&b, "Status: Passed. Role assigned: %s.", res.RoleName)
	}
	return b.String()
}

func rows(buttons []discordgo.Button) []discordgo.MessageComponent {
	out := make([]discordgo.MessageComponent, 0, (len(buttons)+buttonsPerRow-1)/buttonsPerRow)
	for start := 0; start < len(buttons); start += buttonsPerRow {
		end := min(start+buttonsPerRow, len(buttons))
		row := discordgo.ActionsRow{Components: make([]discordgo.MessageComponent, 0, end-start)}
		for _, btn := range buttons[start:end] {
			row.Components = append(row.Components, btn)
		}
		out = append(out, row)
	}
	return out
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
