package loginflow

import (
	"context"
	"fmt"
	"sort"
)

// Step represents a single stage in the login pipeline
type Step interface {
	// Name returns the unique name of this step
	Name() string

	// Order returns the execution order (lower numbers execute first)
	Order() int

	// Execute performs the step's logic
	Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error)

	// ShouldSkip determines if this step should be skipped based on current context
	ShouldSkip(ctx context.Context, flowContext *FlowContext) bool
}

// FlowContext carries state between pipeline steps
type FlowContext struct {
	// Input data
	Request Request

	// Current state
	Result *Result

	// TwoFactorBypassed is set by the bypass step for attempt types that
	// never require a second factor
	TwoFactorBypassed bool

	// Step-specific data (can be used by steps to store intermediate results)
	StepData map[string]interface{}

	// Services (injected by the flow executor)
	Services *ServiceDependencies
}

// StepResult represents the result of executing a pipeline step
type StepResult struct {
	// Continue indicates whether the flow should continue to the next step
	Continue bool

	// EarlyReturn indicates the flow should return immediately with the current result
	EarlyReturn bool

	// Error indicates a login failure produced by this step
	Error *Error

	// Data can contain step-specific data to be stored in FlowContext.StepData
	Data map[string]interface{}
}

// StepRegistry manages and orders pipeline steps
type StepRegistry struct {
	steps []Step
}

// NewStepRegistry creates a new step registry
func NewStepRegistry() *StepRegistry {
	return &StepRegistry{
		steps: make([]Step, 0),
	}
}

// AddStep adds a step to the registry
func (r *StepRegistry) AddStep(step Step) *StepRegistry {
	r.steps = append(r.steps, step)
	return r
}

// GetOrderedSteps returns steps sorted by their order
func (r *StepRegistry) GetOrderedSteps() []Step {
	orderedSteps := make([]Step, len(r.steps))
	copy(orderedSteps, r.steps)

	sort.Slice(orderedSteps, func(i, j int) bool {
		return orderedSteps[i].Order() < orderedSteps[j].Order()
	})

	return orderedSteps
}

// FlowExecutor orchestrates the execution of pipeline steps
type FlowExecutor struct {
	registry *StepRegistry
	services *ServiceDependencies
}

// NewFlowExecutor creates a new flow executor
func NewFlowExecutor(registry *StepRegistry, services *ServiceDependencies) *FlowExecutor {
	return &FlowExecutor{
		registry: registry,
		services: services,
	}
}

// Execute runs the complete login flow
func (e *FlowExecutor) Execute(ctx context.Context, request Request) Result {
	flowContext := &FlowContext{
		Request:  request,
		Result:   &Result{},
		StepData: make(map[string]interface{}),
		Services: e.services,
	}

	steps := e.registry.GetOrderedSteps()

	for _, step := range steps {
		if step.ShouldSkip(ctx, flowContext) {
			continue
		}

		stepResult, err := step.Execute(ctx, flowContext)
		if err != nil {
			flowContext.Result.ErrorResponse = &Error{
				Type:    ErrorTypeStepFailed,
				Message: fmt.Sprintf("step '%s' failed: %v", step.Name(), err),
			}
			return *flowContext.Result
		}

		if stepResult.Error != nil {
			flowContext.Result.ErrorResponse = stepResult.Error
			return *flowContext.Result
		}

		if stepResult.Data != nil {
			for key, value := range stepResult.Data {
				flowContext.StepData[key] = value
			}
		}

		if stepResult.EarlyReturn {
			return *flowContext.Result
		}

		if !stepResult.Continue {
			break
		}
	}

	if flowContext.Result.ErrorResponse == nil {
		flowContext.Result.Success = true
		flowContext.Result.UserID = flowContext.Request.UserID
	}
	return *flowContext.Result
}

// FlowBuilder provides a fluent interface for building login flows
type FlowBuilder struct {
	registry *StepRegistry
}

// NewFlowBuilder creates a new flow builder
func NewFlowBuilder() *FlowBuilder {
	return &FlowBuilder{
		registry: NewStepRegistry(),
	}
}

// AddStep adds a step to the flow
func (b *FlowBuilder) AddStep(step Step) *FlowBuilder {
	b.registry.AddStep(step)
	return b
}

// Build creates a flow executor with the configured steps
func (b *FlowBuilder) Build(services *ServiceDependencies) *FlowExecutor {
	return NewFlowExecutor(b.registry, services)
}

// Predefined step orders
const (
	OrderBypassCheck    = 100
	OrderAlternateLogin = 200
	OrderTwoFactorCheck = 300
	OrderPostLogin      = 400
)
