// SPDX-License-Identifier: MIT
package audio

import "errors"

var (
	// ErrCaptureUnavailable covers a denied, missing or unsupported input device.
	ErrCaptureUnavailable = errors.New("capture unavailable")

	// ErrAnalysisNode is returned when the analyser for a session cannot be built.
	ErrAnalysisNode = errors.New("analysis node failure")

	// ErrStartAborted is returned by Start when Stop ran while it was opening.
	ErrStartAborted = errors.New("capture start aborted")

	// ErrSessionActive is returned by Start while a session is opening or open.
	ErrSessionActive = errors.New("capture session already active")
)
