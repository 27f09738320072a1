package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmorgan81/imagestudio/internal/log"
	"github.com/samber/do"
)

const DefaultEndpoint = "https://api-inference.huggingface.co/models"

const (
	inferenceSteps = 20
	guidanceScale  = 7.5
)

type inferenceParameters struct {
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
}

type inferenceBody struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

type HuggingFaceGenerator struct {
	Client   *http.Client
	Endpoint string
}

func NewHuggingFaceGenerator(i *do.Injector) (Generator, error) {
	return &HuggingFaceGenerator{
		Client:   do.MustInvoke[*http.Client](i),
		Endpoint: do.MustInvokeNamed[string](i, "hf_api_url"),
	}, nil
}

func (g *HuggingFaceGenerator) Generate(ctx context.Context, req Request, key string) (Image, error) {
	if key == "" {
		return Image{}, ErrMissingCredential
	}

	url := strings.TrimRight(g.Endpoint, "/") + "/" + req.Model
	log := log.FromContextOrDiscard(ctx).WithGroup("huggingface").With("url", url, "dimensions", req.Dimensions.String())
	log.Info("generating image")

	body, err := json.Marshal(inferenceBody{
		Inputs: req.Prompt,
		Parameters: inferenceParameters{
			Width:             req.Dimensions.Width,
			Height:            req.Dimensions.Height,
			NumInferenceSteps: inferenceSteps,
			GuidanceScale:     guidanceScale,
		},
	})
	if err != nil {
		return Image{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Image{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client().Do(httpReq)
	if err != nil {
		log.Warn("inference request failed", "error", err)
		return Image{}, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Image{}, &NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reqErr := &RequestError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, req.Model, data)}
		log.Warn("inference endpoint rejected request", "status", resp.StatusCode, "message", reqErr.Message)
		return Image{}, reqErr
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	log.Info("received image", "bytes", len(data), "content-type", contentType)

	return Image{Data: data, ContentType: contentType}, nil
}

func (g *HuggingFaceGenerator) client() *http.Client {
	if g.Client != nil {
		return g.Client
	}
	return http.DefaultClient
}

// errorMessage prefers the endpoint's own {"error": "..."} payload and falls back
// to a status specific explanation when the body is not JSON.
func errorMessage(status int, model string, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		return fmt.Sprintf("HTTP error! status: %d", status)
	}

	switch status {
	case http.StatusNotFound:
		return fmt.Sprintf(`Model "%s" not found or not available.`, model)
	case http.StatusServiceUnavailable:
		return "Model is loading. Please wait 1-2 minutes and try again."
	default:
		return fmt.Sprintf("%d: %s", status, http.StatusText(status))
	}
}
