package command

import (
	"strings"

	"chat-core/internal/models"
)

// HelpHandler answers /help with the list of registered handlers.
type HelpHandler struct {
	pipeline *Pipeline
}

func NewHelpHandler(p *Pipeline) *HelpHandler {
	return &HelpHandler{pipeline: p}
}

func (h *HelpHandler) Name() string { return "help" }

func (h *HelpHandler) CanHandle(req *Request) bool {
	return strings.TrimSpace(req.Content) == "/help"
}

func (h *HelpHandler) Execute(req *Request) (*models.Message, error) {
	names := h.pipeline.Handlers()
	msg := &models.Message{
		Type:    models.TypeHelp,
		Sender:  models.SystemSender,
		Content: "available commands: " + strings.Join(names, ", "),
		Target:  req.Sender,
	}
	return msg, nil
}

// EchoHandler answers /echo <text> with the text, to the sender only.
type EchoHandler struct{}

func NewEchoHandler() *EchoHandler { return &EchoHandler{} }

func (h *EchoHandler) Name() string { return "echo" }

func (h *EchoHandler) CanHandle(req *Request) bool {
	return strings.HasPrefix(req.Content, "/echo ") || strings.TrimSpace(req.Content) == "/echo"
}

func (h *EchoHandler) Execute(req *Request) (*models.Message, error) {
	text := strings.TrimSpace(strings.TrimPrefix(req.Content, "/echo"))
	msg := &models.Message{
		Type:    models.TypeCommand,
		Sender:  models.SystemSender,
		Content: text,
		Target:  req.Sender,
		Command: "echo",
	}
	return msg, nil
}
