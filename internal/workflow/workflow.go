// Package workflow holds the deviation approval state machine. It is pure:
// it decides transitions, the service layer applies them.
package workflow

import "errors"

type Status string

const (
	StatusPending            Status = "pending"
	StatusRDApproved         Status = "rd-approved"
	StatusQualityApproved    Status = "quality-approved"
	StatusProductionApproved Status = "production-approved"
	StatusFinalApproved      Status = "final-approved"
	StatusRejected           Status = "rejected"
)

type Stage string

const (
	StageRD             Stage = "rd"
	StageQuality        Stage = "quality"
	StageProduction     Stage = "production"
	StageGeneralManager Stage = "generalManager"
)

var (
	ErrUnknownStage    = errors.New("unknown approval stage")
	ErrTerminalState   = errors.New("deviation is in a terminal state")
	ErrAlreadyApproved = errors.New("stage is already approved")
	ErrStageOrder      = errors.New("previous stage has not been approved")
)

// stages in sign-off order; a stage can only be approved when the current
// status equals the previous stage's result.
var stages = []Stage{StageRD, StageQuality, StageProduction, StageGeneralManager}

var stageResult = map[Stage]Status{
	StageRD:             StatusRDApproved,
	StageQuality:        StatusQualityApproved,
	StageProduction:     StatusProductionApproved,
	StageGeneralManager: StatusFinalApproved,
}

func ParseStage(raw string) (Stage, error) {
	stage := Stage(raw)
	if _, ok := stageResult[stage]; !ok {
		return "", ErrUnknownStage
	}
	return stage, nil
}

func ValidStatus(raw string) bool {
	switch Status(raw) {
	case StatusPending, StatusRDApproved, StatusQualityApproved,
		StatusProductionApproved, StatusFinalApproved, StatusRejected:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusFinalApproved || s == StatusRejected
}

// Approve returns the status after the given stage signs off. Stages must be
// approved strictly in order, so the current status has to be exactly the
// result of the preceding stage (or pending for the first stage).
func Approve(current Status, stage Stage) (Status, error) {
	result, ok := stageResult[stage]
	if !ok {
		return current, ErrUnknownStage
	}
	if current.Terminal() {
		return current, ErrTerminalState
	}

	required := StatusPending
	for _, s := range stages {
		if s == stage {
			break
		}
		required = stageResult[s]
	}

	switch {
	case current == required:
		return result, nil
	case rank(current) >= rank(result):
		return current, ErrAlreadyApproved
	default:
		return current, ErrStageOrder
	}
}

// Reject terminates the workflow from any non-terminal state. Previously
// recorded sign-offs are kept as history by the caller.
func Reject(current Status) (Status, error) {
	if current.Terminal() {
		return current, ErrTerminalState
	}
	return StatusRejected, nil
}

func rank(s Status) int {
	switch s {
	case StatusPending:
		return 0
	case StatusRDApproved:
		return 1
	case StatusQualityApproved:
		return 2
	case StatusProductionApproved:
		return 3
	case StatusFinalApproved:
		return 4
	default:
		return -1
	}
}
