package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"stemly-gateway/api/internal/fallback"
	"stemly-gateway/api/internal/llm"
	"stemly-gateway/api/internal/store"
	"stemly-gateway/api/internal/tutor"
	"stemly-gateway/api/internal/util"
)

const maxPhotoBytes = 20 << 20

func (r *Router) acceptPhoto(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	ph := msg.Photo[len(msg.Photo)-1]
	if r.Fetch == nil {
		r.SendError(cid, errors.New("photo download is not configured"))
		return
	}
	data, err := r.Fetch(ctx, ph.FileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	r.send(cid, "Photo received, working on it…")
	img := &llm.Image{Data: data, MIME: util.SniffImageMIME(data)}
	r.Study(ctx, cid, userID(msg), msg.Caption, img)
}

// Study classifies the input, then builds notes and a short quiz in
// parallel and sends both.
func (r *Router) Study(ctx context.Context, chatID int64, user, text string, img *llm.Image) {
	ctx, cancel := context.WithTimeout(ctx, studyDeadline)
	defer cancel()

	cls := r.Classifier.Classify(ctx, text, img)
	l := log.WithFields(log.Fields{"chat_id": chatID, "topic": cls.Topic, "source": cls.Source})
	if r.Scans != nil {
		row := store.ScanRow{UserID: user, Topic: cls.Topic, Variables: cls.Variables, Source: cls.Source}
		if img != nil {
			row.ImageHash = store.HashBytes(img.Data)
		}
		if _, err := r.Scans.Insert(ctx, row); err != nil {
			l.WithError(err).Warn("telegram: history insert failed")
		}
	}
	if cls.Topic == tutor.TopicUnknown {
		r.send(chatID, "I couldn't recognise the topic. Try a clearer photo or describe the problem in a sentence.")
		return
	}
	r.topics.set(chatID, cls.Topic)
	r.send(chatID, formatClassification(cls))

	var (
		notes tutor.Notes
		quiz  fallback.Quiz
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		notes = r.Notes.Generate(gctx, cls.Topic, cls.Variables)
		return nil
	})
	g.Go(func() error {
		quiz = r.Quiz.Generate(gctx, cls.Topic, botQuizSize)
		return nil
	})
	_ = g.Wait()

	l.WithFields(log.Fields{"notes_fallback": notes.Fallback, "quiz_fallback": quiz.Fallback}).Info("telegram: study pack ready")
	r.sendLong(chatID, formatNotes(notes))
	r.sendLong(chatID, formatQuiz(quiz))
}

// DirectFetcher downloads files through the Bot API file endpoint.
func DirectFetcher(bot *tgbotapi.BotAPI) FileFetcher {
	client := &http.Client{Timeout: 60 * time.Second}
	return func(ctx context.Context, fileID string) ([]byte, error) {
		url, err := bot.GetFileDirectURL(fileID)
		if err != nil {
			return nil, err
		}
		return download(ctx, client, url)
	}
}

func download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
}
