// Package sdruntime owns the process-wide image model handle.
//
// A Runtime wraps one Backend. The backend's model is loaded lazily on the
// first Generate call and kept for the lifetime of the process; a failed
// load is reported as ErrModelLoadFailed and attempted again on the next
// call. Every Generate call holds the runtime's single slot for its whole
// duration, so at most one generation runs against the model at a time.
//
// # Backends
//
//   - WebUIBackend: Stable Diffusion WebUI/Forge over its sdapi HTTP API
//   - NullBackend: never loads; used when no image backend is configured
//
// Other packages can provide their own Backend (imagegen ships one for the
// OpenAI Images API).
//
// # Validation
//
// The runtime checks everything it sends and everything it receives:
//
//   - ValidatePrompt and ValidateParams before the backend is called
//   - ValidateImageData on the returned bytes, which must be a complete PNG
//
// Use errors.Is with the sentinels in errors.go to classify failures:
//
//	img, err := rt.Generate(ctx, "a red door in a forest")
//	if errors.Is(err, sdruntime.ErrModelUnavailable) {
//	    // no usable backend
//	}
package sdruntime
