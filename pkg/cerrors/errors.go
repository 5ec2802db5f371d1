package cerrors

import "fmt"

type Generic struct {
	Phase  string
	Reason string
}

func (e Generic) Error() string {
	if e.Phase == "" {
		return e.Reason
	}
	return fmt.Sprintf("[%s]: %s", e.Phase, e.Reason)
}

func (e Generic) UserFriendly() bool {
	return true
}

func (e Generic) ErrorType() ErrorType {
	return ErrorTypeGeneric
}

// ExperimentExecution is raised when the forward action of an experiment
// hits an unrecoverable resource-API failure.
type ExperimentExecution struct {
	Experiment string
	Target     string
	Namespace  string
	Reason     string
}

func (e ExperimentExecution) Error() string {
	if e.Namespace == "" {
		return fmt.Sprintf("experiment '%s' failed on '%s', %s", e.Experiment, e.Target, e.Reason)
	}
	return fmt.Sprintf("experiment '%s' failed on '%s/%s', %s", e.Experiment, e.Namespace, e.Target, e.Reason)
}

func (e ExperimentExecution) UserFriendly() bool {
	return true
}

func (e ExperimentExecution) ErrorType() ErrorType {
	return ErrorTypeExperimentExecution
}

// Rollback is raised when undoing an experiment fails. It is logged and
// absorbed by the safety controller, never surfaced to a caller.
type Rollback struct {
	Experiment string
	Target     string
	Namespace  string
	Reason     string
}

func (e Rollback) Error() string {
	return fmt.Sprintf("rollback of '%s' failed on '%s/%s', %s", e.Experiment, e.Namespace, e.Target, e.Reason)
}

func (e Rollback) UserFriendly() bool {
	return true
}

func (e Rollback) ErrorType() ErrorType {
	return ErrorTypeRollback
}

// TargetSelection is raised when a target cannot be resolved or is not of
// the kind an experiment expects.
type TargetSelection struct {
	Target string
	Reason string
}

func (e TargetSelection) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("target selection failed, %s", e.Reason)
	}
	return fmt.Sprintf("target '%s' selection failed, %s", e.Target, e.Reason)
}

func (e TargetSelection) UserFriendly() bool {
	return true
}

func (e TargetSelection) ErrorType() ErrorType {
	return ErrorTypeTargetSelection
}

// PlanParse is raised when an experiment plan file cannot be decoded.
type PlanParse struct {
	Entry  int
	Reason string
}

func (e PlanParse) Error() string {
	if e.Entry == 0 {
		return fmt.Sprintf("failed to parse experiment plan, %s", e.Reason)
	}
	return fmt.Sprintf("failed to parse experiment plan entry %d, %s", e.Entry, e.Reason)
}

func (e PlanParse) UserFriendly() bool {
	return true
}

func (e PlanParse) ErrorType() ErrorType {
	return ErrorTypePlanParse
}

// KubeClient is raised when clientset construction or a cluster call
// outside any experiment fails.
type KubeClient struct {
	Operation string
	Reason    string
}

func (e KubeClient) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("kubernetes client error, %s", e.Reason)
	}
	return fmt.Sprintf("failed to %s, %s", e.Operation, e.Reason)
}

func (e KubeClient) UserFriendly() bool {
	return true
}

func (e KubeClient) ErrorType() ErrorType {
	return ErrorTypeKubeClient
}
