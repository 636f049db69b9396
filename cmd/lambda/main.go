package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/dreamup/answer-agent/internal/config"
	"github.com/dreamup/answer-agent/internal/session"
	"github.com/dreamup/answer-agent/internal/solver"
)

// LambdaEvent is one question to answer
type LambdaEvent struct {
	// Question is the question text
	Question string `json:"question,omitempty"`
	// ImageBase64 is a PNG of the question, used instead of Question
	ImageBase64 string `json:"image_base64,omitempty"`
	// Code is the bookwork code shown with the question. With no question or
	// image the stored answer for the code is returned.
	Code string `json:"code,omitempty"`
}

// LambdaResponse is the Lambda function output
type LambdaResponse struct {
	Success bool `json:"success"`
	// Answer is the normalised answer
	Answer     string        `json:"answer,omitempty"`
	Identifier string        `json:"identifier,omitempty"`
	Source     solver.Source `json:"source,omitempty"`
	// Error message if failed
	Error string `json:"error,omitempty"`
	// Duration in seconds
	Duration float64 `json:"duration_seconds,omitempty"`
}

// Handler answers questions through a solver shared across invocations
type Handler struct {
	solver *solver.Solver
	logger *slog.Logger
}

// HandleRequest is the Lambda handler function
func (h *Handler) HandleRequest(ctx context.Context, event LambdaEvent) (LambdaResponse, error) {
	startTime := time.Now()

	resp, err := h.answer(ctx, event)
	resp.Duration = time.Since(startTime).Seconds()
	if err != nil {
		h.logger.Error("request failed", "error", err)
		resp.Success = false
		resp.Error = err.Error()
		// Don't return error to Lambda - include in response
		return resp, nil
	}
	resp.Success = true
	return resp, nil
}

func (h *Handler) answer(ctx context.Context, event LambdaEvent) (LambdaResponse, error) {
	q := solver.PendingQuestion{
		Kind: solver.KindNormal,
		Text: strings.TrimSpace(event.Question),
		Code: strings.TrimSpace(event.Code),
	}
	if event.ImageBase64 != "" {
		image, err := base64.StdEncoding.DecodeString(event.ImageBase64)
		if err != nil {
			return LambdaResponse{}, fmt.Errorf("image_base64 is not valid base64: %w", err)
		}
		q.Image = image
	}

	if q.Text == "" && !q.HasImage() {
		if q.Code == "" {
			return LambdaResponse{}, fmt.Errorf("one of question, image_base64 or code is required")
		}
		return h.lookupCode(ctx, q.Code)
	}

	res, err := h.solver.Solve(ctx, q)
	if err != nil {
		return LambdaResponse{}, err
	}
	if q.Code != "" {
		if err := h.solver.Remember(ctx, solver.BookworkIdentifier(q.Code), res.Answer); err != nil {
			return LambdaResponse{}, err
		}
	}
	if err := h.solver.Flush(ctx); err != nil {
		return LambdaResponse{}, err
	}

	h.logger.Info("question answered",
		"identifier_length", len(res.Identifier),
		"answer", res.Answer,
		"source", res.Source)
	return LambdaResponse{Answer: res.Answer, Identifier: res.Identifier, Source: res.Source}, nil
}

func (h *Handler) lookupCode(ctx context.Context, code string) (LambdaResponse, error) {
	id := solver.BookworkIdentifier(code)
	lookup, err := h.solver.Lookup(ctx, id)
	if err != nil {
		return LambdaResponse{}, err
	}
	if !lookup.Hit {
		return LambdaResponse{Identifier: id}, fmt.Errorf("no answer stored for bookwork code %s", code)
	}
	return LambdaResponse{Answer: lookup.Answer, Identifier: id, Source: solver.SourceCache}, nil
}

func main() {
	loader, err := config.NewConfigLoader("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Lambda captures stdout and stderr; JSON lines are easier to query
	cfg.Log.Format = "json"
	logger, _, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	slv, _, err := session.NewSolver(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create solver", "error", err)
		os.Exit(1)
	}

	h := &Handler{solver: slv, logger: logger}
	lambda.Start(h.HandleRequest)
}
