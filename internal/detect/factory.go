package detect

import (
	"context"
	"fmt"

	"github.com/ToasterTechHelp/Yoink-Core/pkg/logger"
)

// Kind selects a detector backend.
type Kind string

const (
	KindRemote   Kind = "remote"
	KindTextract Kind = "textract"
)

// Config selects and parameterizes a backend.
type Config struct {
	Kind     Kind
	Remote   RemoteConfig
	Textract TextractConfig
}

// New is the backend factory.
func New(ctx context.Context, cfg Config, log logger.Logger) (Detector, error) {
	switch cfg.Kind {
	case KindRemote:
		return NewRemoteDetector(cfg.Remote), nil
	case KindTextract:
		return NewTextractDetector(ctx, cfg.Textract, log)
	default:
		return nil, fmt.Errorf("unsupported detector kind: %s", cfg.Kind)
	}
}
