package camera

// SupportsTorch reports whether the stream's video track can drive a torch.
// Released streams report false.
func SupportsTorch(s *ActiveStream) bool {
	if s == nil || s.Released() {
		return false
	}
	return s.video.Capabilities().Torch
}

// SetTorch switches the torch of the stream's video track. A track without
// torch support is a capability gap, not a failure: it returns false with
// no error.
func SetTorch(s *ActiveStream, on bool) (bool, error) {
	if !SupportsTorch(s) {
		return false, nil
	}
	if err := s.video.ApplyTorch(on); err != nil {
		return false, wrap("torch", err)
	}
	return true, nil
}
