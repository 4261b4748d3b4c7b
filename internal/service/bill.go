package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kdduha/bill-parser/internal/config"
	"github.com/kdduha/bill-parser/internal/models"
	"github.com/openai/openai-go/v3"
	"github.com/sirupsen/logrus"
)

var errEmptyChoices = errors.New("openai returned no choices")

type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
}

type BillService struct {
	logger           *logrus.Logger
	openaiClient     openai.Client
	modelName        string
	maxTokens        int64
	validateResponse bool
	cache            Cache
}

func NewBillService(logger *logrus.Logger, openaiClient openai.Client, cfg config.OpenAIConfig) *BillService {
	return &BillService{
		logger:           logger,
		openaiClient:     openaiClient,
		modelName:        cfg.Model,
		maxTokens:        cfg.MaxTokens,
		validateResponse: cfg.ValidateResponse,
	}
}

func (b *BillService) SetCacheClient(cache Cache) {
	b.cache = cache
}

// Parse sends the receipt image to the model and returns its reply text.
func (b *BillService) Parse(ctx context.Context, req *models.ParseRequest) (string, error) {
	log := b.logger.WithFields(logrus.Fields{"file": req.FileName, "format": req.FileFormat})

	if cached, ok := b.cacheGet(ctx, req); ok {
		log.Debug("served from cache")
		return cached, nil
	}

	params, err := b.buildOpenAIReq(req)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	log.Debug("sending receipt to model")
	resp, err := b.openaiClient.Chat.Completions.New(ctx, *params)
	if err != nil {
		return "", fmt.Errorf("openai client error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyChoices
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if b.validateResponse {
		if text, err = validateBill(text); err != nil {
			return "", err
		}
	}

	b.cacheSet(ctx, req, text)
	return text, nil
}

// ParseStream is the streaming form of Parse. The channel is closed after a
// Done or Err chunk, or when ctx is cancelled.
func (b *BillService) ParseStream(
	ctx context.Context,
	req *models.ParseRequest,
) (<-chan models.StreamChunk, error) {
	ch := make(chan models.StreamChunk, 1)

	if cached, ok := b.cacheGet(ctx, req); ok {
		ch <- models.StreamChunk{Delta: cached, Done: true}
		close(ch)
		return ch, nil
	}

	params, err := b.buildOpenAIReq(req)
	if err != nil {
		return nil, fmt.Errorf("build request error: %w", err)
	}

	go func() {
		defer close(ch)

		sendOrStop := func(msg models.StreamChunk) bool {
			select {
			case ch <- msg:
				return true
			case <-ctx.Done():
				return false
			}
		}

		stream := b.openaiClient.Chat.Completions.NewStreaming(ctx, *params)
		defer stream.Close()

		var builder strings.Builder

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}

			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}

			builder.WriteString(delta)
			if !sendOrStop(models.StreamChunk{Delta: delta}) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			sendOrStop(models.StreamChunk{Err: fmt.Errorf("openai stream error: %w", err)})
			return
		}

		text := strings.TrimSpace(builder.String())
		if b.validateResponse {
			validated, err := validateBill(text)
			if err != nil {
				sendOrStop(models.StreamChunk{Err: err})
				return
			}
			text = validated
		}

		b.cacheSet(ctx, req, text)
		sendOrStop(models.StreamChunk{Done: true})
	}()

	return ch, nil
}

func (b *BillService) cacheGet(ctx context.Context, req *models.ParseRequest) (string, bool) {
	if b.cache == nil {
		return "", false
	}
	cached, found, err := b.cache.Get(ctx, b.cacheKey(req))
	if err != nil {
		b.logger.WithError(err).Warn("cache get error")
		return "", false
	}
	return cached, found
}

func (b *BillService) cacheSet(ctx context.Context, req *models.ParseRequest, value string) {
	if b.cache == nil || value == "" {
		return
	}
	if err := b.cache.Set(ctx, b.cacheKey(req), value); err != nil {
		b.logger.WithError(err).Warn("failed to set cache")
	}
}

// cacheKey depends on the image bytes and on every knob that changes the
// model output; the file name is irrelevant.
func (b *BillService) cacheKey(req *models.ParseRequest) string {
	data := []string{
		b.modelName,
		strconv.FormatInt(b.maxTokens, 10),
		strconv.FormatBool(b.validateResponse),
		normalizeFormat(req.FileFormat),
		req.FileBase64,
	}

	hash := sha256.Sum256([]byte(strings.Join(data, "-")))
	return "bill:" + hex.EncodeToString(hash[:])
}
