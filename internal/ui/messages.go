package ui

import (
	"tubegrab/internal/orchestrator"
	"tubegrab/internal/pipeline"
)

type notifyMsg struct {
	N orchestrator.Notification
}

type jobDoneMsg struct {
	Result pipeline.Result
	Err    error
}
