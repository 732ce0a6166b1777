package discord

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-bot/internal/model"
	"github.com/stemsi/proctor-bot/internal/service"
)

const (
	// CommandName is the slash command that lists certifications.
	CommandName        = "get-certificates"
	commandDescription = "Get the certificates available to a user"

	interactionTimeout = 10 * time.Second
)

// Engine is the exam flow driven by interactions.
type Engine interface {
	ListCertifications(ctx context.Context, discordGuildID string) ([]model.Certification, error)
	StartSession(ctx context.Context, player service.Player, certificationID uuid.UUID) (*service.QuestionView, error)
	SubmitAnswer(ctx context.Context, sessionID, answerID uuid.UUID, userID string) (*service.AnswerOutcome, error)
	SweepExpired(ctx context.Context) int
}

// Responder is the subset of *discordgo.Session used to answer interactions.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// CommandRegistrar is the subset of *discordgo.Session used to install the
// slash command.
type CommandRegistrar interface {
	ApplicationCommandCreate(appID, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
}

// Bot routes slash commands and button presses to the exam engine.
type Bot struct {
	engine Engine
	log    zerolog.Logger
}

func NewBot(engine Engine, log zerolog.Logger) *Bot {
	return &Bot{
		engine: engine,
		log:    log.With().Str("component", "discord_bot").Logger(),
	}
}

// Attach registers the gateway handlers on s.
func (b *Bot) Attach(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if s.State.User == nil {
			return
		}
		b.RegisterCommand(s, s.State.User.ID, g.ID)
	})
	s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
		defer cancel()
		b.HandleInteraction(ctx, s, i.Interaction)
	})
}

// RegisterCommand installs the slash command in one guild.
func (b *Bot) RegisterCommand(r CommandRegistrar, appID, guildID string) {
	_, err := r.ApplicationCommandCreate(appID, guildID, &discordgo.ApplicationCommand{
		Name:        CommandName,
		Description: commandDescription,
	})
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", guildID).Msg("Failed to register command")
		return
	}
	b.log.Debug().Str("guild_id", guildID).Msg("Command registered")
}

// HandleInteraction dispatches one interaction.
func (b *Bot) HandleInteraction(ctx context.Context, r Responder, i *discordgo.Interaction) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if strings.EqualFold(i.ApplicationCommandData().Name, CommandName) {
			b.listCertifications(ctx, r, i)
		}
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		switch {
		case IsStart(customID):
			b.startCertification(ctx, r, i, customID)
		case IsAnswer(customID):
			b.answer(ctx, r, i, customID)
		}
	}
}

func (b *Bot) listCertifications(ctx context.Context, r Responder, i *discordgo.Interaction) {
	if i.GuildID == "" {
		b.reply(r, i, MsgGuildOnly)
		return
	}

	b.engine.SweepExpired(ctx)

	certs, err := b.engine.ListCertifications(ctx, i.GuildID)
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", i.GuildID).Msg("Failed to list certifications")
		b.reply(r, i, MsgInternal)
		return
	}
	if len(certs) == 0 {
		b.reply(r, i, MsgNoCertifications)
		return
	}

	content, components := CertificationMenu(certs)
	b.respond(r, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: components,
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
}

func (b *Bot) startCertification(ctx context.Context, r Responder, i *discordgo.Interaction, customID string) {
	if i.GuildID == "" {
		b.reply(r, i, MsgGuildOnly)
		return
	}
	certID, err := ParseStart(customID)
	if err != nil {
		b.reply(r, i, MsgInvalidStart)
		return
	}

	view, err := b.engine.StartSession(ctx, playerOf(i), certID)
	if err != nil {
		b.reject(r, i, err)
		return
	}
	b.update(r, i, QuestionPrompt(view), AnswerButtons(view))
}

func (b *Bot) answer(ctx context.Context, r Responder, i *discordgo.Interaction, customID string) {
	sessionID, answerID, err := ParseAnswer(customID)
	if err != nil {
		b.reply(r, i, MsgInvalidAnswer)
		return
	}

	out, err := b.engine.SubmitAnswer(ctx, sessionID, answerID, playerOf(i).UserID)
	if err != nil {
		b.reject(r, i, err)
		return
	}
	if out.Result != nil {
		b.update(r, i, ResultMessage(out.Result), []discordgo.MessageComponent{})
		return
	}
	b.update(r, i, QuestionPrompt(out.Next), AnswerButtons(out.Next))
}

func (b *Bot) reject(r Responder, i *discordgo.Interaction, err error) {
	if !isUserError(err) {
		b.log.Error().Err(err).Str("guild_id", i.GuildID).Msg("Interaction failed")
	}
	b.reply(r, i, RejectionMessage(err))
}

// reply sends an ephemeral message visible only to the caller.
func (b *Bot) reply(r Responder, i *discordgo.Interaction, content string) {
	b.respond(r, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// update replaces the message that carried the pressed button.
func (b *Bot) update(r Responder, i *discordgo.Interaction, content string, components []discordgo.MessageComponent) {
	b.respond(r, i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: components,
		},
	})
}

func (b *Bot) respond(r Responder, i *discordgo.Interaction, resp *discordgo.InteractionResponse) {
	if err := r.InteractionRespond(i, resp); err != nil {
		b.log.Warn().Err(err).Str("interaction_id", i.ID).Msg("Failed to respond to interaction")
	}
}

func playerOf(i *discordgo.Interaction) service.Player {
	p := service.Player{DiscordGuildID: i.GuildID}
	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	if user != nil {
		p.UserID = user.ID
		p.DisplayName = user.Username
		if user.GlobalName != "" {
			p.DisplayName = user.GlobalName
		}
	}
	return p
}
