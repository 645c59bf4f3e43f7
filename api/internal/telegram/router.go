package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"stemly-gateway/api/internal/store"
	"stemly-gateway/api/internal/tutor"
)

const (
	studyDeadline = 3 * time.Minute
	botQuizSize   = 3
)

// Sender is the subset of *tgbotapi.BotAPI the router writes through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// FileFetcher downloads a Telegram file by id.
type FileFetcher func(ctx context.Context, fileID string) ([]byte, error)

type Router struct {
	Bot        Sender
	Fetch      FileFetcher
	Classifier *tutor.Classifier
	Notes      *tutor.NotesService
	Quiz       *tutor.QuizService
	Scans      *store.ScanRepo

	topics chatTopics
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	cid := msg.Chat.ID

	if msg.IsCommand() {
		r.HandleCommand(ctx, msg)
		return
	}

	switch {
	case len(msg.Photo) > 0:
		r.acceptPhoto(ctx, msg)
	case strings.TrimSpace(msg.Text) != "":
		r.Study(ctx, cid, userID(msg), msg.Text, nil)
	}
}

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, startText)
	case "health":
		r.send(cid, "✅ OK")
	case "quiz":
		topic, ok := r.topics.get(cid)
		if !ok {
			r.send(cid, "Send a photo or a question first, then ask for a quiz.")
			return
		}
		n := botQuizSize
		if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
			if v, err := strconv.Atoi(arg); err == nil {
				n = v
			}
		}
		qctx, cancel := context.WithTimeout(ctx, studyDeadline)
		defer cancel()
		r.sendLong(cid, formatQuiz(r.Quiz.Generate(qctx, topic, n)))
	default:
		r.send(cid, "Unknown command. Try /start")
	}
}

func (r *Router) send(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.WithField("chat_id", chatID).WithError(err).Warn("telegram: send failed")
	}
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, fmt.Sprintf("Something went wrong: %v", err))
}

func userID(msg *tgbotapi.Message) string {
	if msg.From != nil {
		return "tg:" + strconv.FormatInt(msg.From.ID, 10)
	}
	return "tg-chat:" + strconv.FormatInt(msg.Chat.ID, 10)
}
