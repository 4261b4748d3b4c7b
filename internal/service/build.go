package service

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kdduha/bill-parser/internal/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
)

// IsSupportedFormat reports whether ext (with or without the leading dot,
// any case) is an accepted image extension.
func IsSupportedFormat(ext string) bool {
	return slices.Contains(SupportedFormats, normalizeFormat(ext))
}

func normalizeFormat(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func mediaType(format string) (string, error) {
	switch normalizeFormat(format) {
	case JPG, JPEG:
		return "image/jpeg", nil
	case PNG:
		return "image/png", nil
	default:
		return "", fmt.Errorf("unsupported file format {%s}", format)
	}
}

func imageDataURI(req *models.ParseRequest) (string, error) {
	mt, err := mediaType(req.FileFormat)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("data:%s;base64,%s", mt, req.FileBase64), nil
}

func (b *BillService) buildOpenAIReq(req *models.ParseRequest) (*openai.ChatCompletionNewParams, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	imageData, err := imageDataURI(req)
	if err != nil {
		return nil, err
	}

	return &openai.ChatCompletionNewParams{
		Model: shared.ChatModel(b.modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(userPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: imageData,
				}),
			}),
		},
		MaxCompletionTokens: openai.Int(b.maxTokens),
	}, nil
}
