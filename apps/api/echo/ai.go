package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	aisvc "github.com/recedu/reconline/services/ai"
)

type aiApi struct {
	deps ServerDeps
}

func registerAIAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := aiApi{deps: deps}

	ag := g.Group("/ai", jwt)
	ag.POST("/tutor", api.tutor)
	ag.POST("/grammar", api.grammar)
	ag.POST("/speech", api.speech)
}

func (api *aiApi) tutor(ctx echo.Context) error {
	var data TutorRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TutorRequest")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	reply, err := api.deps.Tutor.Reply(ctx.Request().Context(), data.Messages)
	if err != nil {
		return errors.Wrap(err, "getting tutor reply")
	}
	return ctx.JSON(http.StatusOK, TutorResponse{Reply: reply})
}

func (api *aiApi) grammar(ctx echo.Context) error {
	var data GrammarRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GrammarRequest")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	result, err := api.deps.Grammar.Check(ctx.Request().Context(), data.Text)
	if err != nil {
		return errors.Wrap(err, "checking grammar")
	}
	return ctx.JSON(http.StatusOK, result)
}

// speech synthesizes the text and returns the audio. Repeated texts are
// served from the synthesizer cache.
func (api *aiApi) speech(ctx echo.Context) error {
	var data SpeechRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SpeechRequest")
	}
	if err := api.deps.Validate.Struct(&data); err != nil {
		return err
	}

	audio, err := api.deps.Speech.Speak(ctx.Request().Context(), data.Text)
	if err != nil {
		return errors.Wrap(err, "synthesizing speech")
	}
	return ctx.Blob(http.StatusOK, "audio/mpeg", audio)
}

type (
	TutorRequest struct {
		Messages []aisvc.Message `json:"messages" validate:"required,min=1"`
	}

	TutorResponse struct {
		Reply string `json:"reply"`
	}

	GrammarRequest struct {
		Text string `json:"text" validate:"required"`
	}

	SpeechRequest struct {
		Text string `json:"text" validate:"required"`
	}
)
