package entity

import (
	"fmt"
	"time"
)

// Request is a single form submission moving through the approval pipeline
type Request struct {
	ID              string         `json:"id"`
	FormID          string         `json:"formId"`
	FormTitle       string         `json:"formTitle,omitempty"`
	FormData        FormData       `json:"formData"`
	SubmittedBy     string         `json:"submittedBy"`
	SubmitterName   string         `json:"submitterName"`
	SubmitterEmail  string         `json:"submitterEmail"`
	Department      string         `json:"department"`
	Status          string         `json:"status"`
	Priority        string         `json:"priority"`
	CurrentApprover *Approver      `json:"currentApprover,omitempty"`
	ApprovalChain   []ApprovalStep `json:"approvalChain"`
	Comments        []Comment      `json:"comments"`
	Attachments     []Attachment   `json:"attachments"`
	Version         int            `json:"version"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DueDate         *time.Time     `json:"dueDate,omitempty"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
}

// Approver is the denormalized identity of a user acting on a request
type Approver struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// ApprovalStep records one decision on a request. Steps are only ever appended.
type ApprovalStep struct {
	ApproverID    string    `json:"approverId"`
	ApproverName  string    `json:"approverName,omitempty"`
	ApproverEmail string    `json:"approverEmail,omitempty"`
	Status        string    `json:"status"`
	FromStatus    string    `json:"fromStatus"`
	ToStatus      string    `json:"toStatus"`
	Comment       string    `json:"comment,omitempty"`
	DecidedAt     time.Time `json:"decidedAt"`
}

// IsEditable reports whether the submitter may still change the form data
func (r *Request) IsEditable() bool {
	return r.Status == StatusPending || r.Status == StatusNeedsCorrection
}

// CurrentStep returns the most recent approval step, or nil when none exists
func (r *Request) CurrentStep() *ApprovalStep {
	if len(r.ApprovalChain) == 0 {
		return nil
	}
	step := r.ApprovalChain[len(r.ApprovalChain)-1]
	return &step
}

// AppendStep adds a decision to the approval chain without touching earlier entries
func (r *Request) AppendStep(step ApprovalStep) {
	chain := make([]ApprovalStep, len(r.ApprovalChain), len(r.ApprovalChain)+1)
	copy(chain, r.ApprovalChain)
	r.ApprovalChain = append(chain, step)
}

// IsCurrentApprover reports whether userID is the request's current approver
func (r *Request) IsCurrentApprover(userID string) bool {
	return r.CurrentApprover != nil && userID != "" && r.CurrentApprover.ID == userID
}

// Clone returns a deep copy so callers can mutate without affecting the original
func (r *Request) Clone() *Request {
	c := *r
	c.FormData = r.FormData.Clone()
	if r.CurrentApprover != nil {
		a := *r.CurrentApprover
		c.CurrentApprover = &a
	}
	c.ApprovalChain = append([]ApprovalStep(nil), r.ApprovalChain...)
	c.Comments = append([]Comment(nil), r.Comments...)
	c.Attachments = append([]Attachment(nil), r.Attachments...)
	if r.DueDate != nil {
		d := *r.DueDate
		c.DueDate = &d
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// StepStatusFor maps a request status reached by a transition to the status of
// the approval step recording it
func StepStatusFor(toStatus string) string {
	switch toStatus {
	case StatusApproved, StatusCompleted:
		return StepStatusApproved
	case StatusRejected:
		return StepStatusRejected
	default:
		return StepStatusPending
	}
}

// FormData is the submitted form payload. Values are restricted to strings,
// numbers, booleans, nulls, lists and nested maps of the same.
type FormData map[string]interface{}

// Validate checks that every value is one of the supported dynamic kinds
func (f FormData) Validate() error {
	for k, v := range f {
		if err := validateFormValue(k, v, 0); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy of the form data
func (f FormData) Clone() FormData {
	if f == nil {
		return nil
	}
	out := make(FormData, len(f))
	for k, v := range f {
		out[k] = cloneFormValue(v)
	}
	return out
}

const maxFormDepth = 16

func validateFormValue(path string, v interface{}, depth int) error {
	if depth > maxFormDepth {
		return fmt.Errorf("%w: formData.%s nested too deeply", ErrValidation, path)
	}
	switch val := v.(type) {
	case nil, string, bool, float64, float32, int, int32, int64:
		return nil
	case []interface{}:
		for i, item := range val {
			if err := validateFormValue(fmt.Sprintf("%s[%d]", path, i), item, depth+1); err != nil {
				return err
			}
		}
		return nil
	case map[string]interface{}:
		for k, item := range val {
			if err := validateFormValue(path+"."+k, item, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: formData.%s has unsupported type %T", ErrValidation, path, v)
	}
}

func cloneFormValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneFormValue(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = cloneFormValue(item)
		}
		return out
	default:
		return val
	}
}
