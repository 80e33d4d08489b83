// Package commands parses and executes the text commands accepted over the
// SMS and Messenger webhooks: start, stop, check, and drink logging.
package commands

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/barflyapp/barfly-data/internal/apperr"
	"github.com/barflyapp/barfly-data/internal/checkin"
	"github.com/barflyapp/barfly-data/internal/clock"
	"github.com/barflyapp/barfly-data/internal/i18n"
	"github.com/barflyapp/barfly-data/internal/session"
	"github.com/barflyapp/barfly-data/internal/users"
)

// --------------------------------------------------------------------------
// Parsing
// --------------------------------------------------------------------------

// Kind is the recognized command verb.
type Kind string

const (
	KindStart   Kind = "start"
	KindStop    Kind = "stop"
	KindCheck   Kind = "check"
	KindDrink   Kind = "drink"
	KindUnknown Kind = "unknown"
)

// DrinkArgs are the parsed arguments of a drink command.
type DrinkArgs struct {
	Name   string
	ABV    float64 // fraction
	SizeOz float64
}

// Command is one parsed text command.
type Command struct {
	Kind  Kind
	Drink *DrinkArgs
}

// Parse interprets a raw inbound message. Drink syntax:
//
//	drink <name>; <abv%>; <oz>
//
// e.g. "drink hazy ipa; 6.5; 16". Anything unparseable is KindUnknown.
func Parse(text string) Command {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Command{Kind: KindUnknown}
	}

	verb, rest, _ := strings.Cut(trimmed, " ")
	switch strings.ToLower(verb) {
	case "start":
		return Command{Kind: KindStart}
	case "stop":
		return Command{Kind: KindStop}
	case "check":
		return Command{Kind: KindCheck}
	case "drink":
		if args := parseDrink(rest); args != nil {
			return Command{Kind: KindDrink, Drink: args}
		}
		return Command{Kind: KindUnknown}
	default:
		return Command{Kind: KindUnknown}
	}
}

func parseDrink(rest string) *DrinkArgs {
	parts := strings.Split(rest, ";")
	if len(parts) != 3 {
		return nil
	}

	name := strings.TrimSpace(parts[0])
	if name == "" {
		return nil
	}
	abvPercent, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(parts[1]), "%"), 64)
	if err != nil || abvPercent < 0 || abvPercent > 100 {
		return nil
	}
	sizeOz, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil || sizeOz <= 0 {
		return nil
	}

	return &DrinkArgs{Name: name, ABV: abvPercent / 100.0, SizeOz: sizeOz}
}

// --------------------------------------------------------------------------
// Execution
// --------------------------------------------------------------------------

// Handler executes parsed commands against the session controller and
// stores, returning the localized reply for the channel to send back.
type Handler struct {
	controller *session.Controller
	checkins   checkin.Store
	samples    session.SampleStore
	clock      clock.Clock
	logger     *slog.Logger
}

func NewHandler(controller *session.Controller, checkins checkin.Store, samples session.SampleStore, clk clock.Clock, logger *slog.Logger) *Handler {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		controller: controller,
		checkins:   checkins,
		samples:    samples,
		clock:      clk,
		logger:     logger,
	}
}

// Execute runs the command in text for an already-resolved user and returns
// the reply. Never returns an error: failures become reply strings.
func (h *Handler) Execute(ctx context.Context, user *users.User, text string, source session.Source) string {
	cmd := Parse(text)

	switch cmd.Kind {
	case KindStart:
		_, err := h.controller.Start(ctx, user, session.StartOptions{Source: source})
		if errors.Is(err, apperr.ErrConflict) {
			return i18n.Label(i18n.KeyAlreadyRunning)
		}
		if err != nil {
			h.logger.Warn("command start failed", "user_id", user.ID, "error", err)
			return i18n.Label(i18n.KeyUnknownCommand)
		}
		return i18n.Label(i18n.KeySessionStarted, user.Username)

	case KindStop:
		_, err := h.controller.Stop(ctx, user)
		if errors.Is(err, apperr.ErrConflict) || errors.Is(err, apperr.ErrNotFound) {
			return i18n.Label(i18n.KeyNoSession)
		}
		if err != nil {
			h.logger.Warn("command stop failed", "user_id", user.ID, "error", err)
			return i18n.Label(i18n.KeyUnknownCommand)
		}
		return i18n.Label(i18n.KeySessionStopped, user.Username)

	case KindCheck:
		sample, err := h.samples.Latest(ctx, user.ID)
		if err != nil {
			return i18n.Label(i18n.KeyCheckNoData)
		}
		return i18n.Label(i18n.KeyCheckReply, sample.BAC, sample.SampledAt.Format("15:04"))

	case KindDrink:
		ev := &checkin.Checkin{
			UserID:  user.ID,
			DrankAt: h.clock.Now(),
			Name:    cmd.Drink.Name,
			ABV:     cmd.Drink.ABV,
			SizeOz:  cmd.Drink.SizeOz,
		}
		if err := h.checkins.Insert(ctx, ev); err != nil {
			h.logger.Warn("command drink failed", "user_id", user.ID, "error", err)
			return i18n.Label(i18n.KeyUnknownCommand)
		}
		return i18n.Label(i18n.KeyDrinkLogged, cmd.Drink.Name)

	default:
		return i18n.Label(i18n.KeyUnknownCommand)
	}
}
