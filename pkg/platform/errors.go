/*
Copyright The Modelserve Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package platform

import (
	"errors"
	"fmt"
)

// Error codes returned by the Modelserve control plane.
const (
	CodeValidation      = "ValidationError"
	CodeNotFound        = "ResourceNotFound"
	CodeAlreadyExists   = "ResourceAlreadyExists"
	CodeResourceInUse   = "ResourceInUse"
	CodeNoCapacity      = "NoCapacityError"
	CodeConflictingOp   = "ConflictingOperation"
	CodeThrottling      = "ThrottlingError"
	CodeInternalFailure = "InternalFailure"
)

// APIError is the structured error body every control-plane and runtime
// call returns on failure.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	RequestID  string `json:"-"`
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s: %s (request id %s)", e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func apiErrorCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// IsNotFound reports whether err is the platform's not-found error.
// Teardown paths use this to tolerate already-deleted resources.
func IsNotFound(err error) bool {
	return apiErrorCode(err, CodeNotFound)
}

// IsAlreadyExists reports whether err is a duplicate-create rejection.
func IsAlreadyExists(err error) bool {
	return apiErrorCode(err, CodeAlreadyExists)
}

// IsNoCapacity reports whether err is the zero-capacity invocation failure
// raised while a scaled-to-zero endpoint re-provisions.
func IsNoCapacity(err error) bool {
	return apiErrorCode(err, CodeNoCapacity)
}
