package planner

// mockLogger is a mock implementation of logger.Logger for testing
type mockLogger struct {
	phaseCalls []string
	copyCalls  []copyCall
	errorCalls []errorCall
	debugCalls []string
}

type copyCall struct {
	src string
	dst string
}

type errorCall struct {
	operation string
	path      string
	err       error
}

func (m *mockLogger) Phase(phase string, message string) {
	m.phaseCalls = append(m.phaseCalls, phase)
}

func (m *mockLogger) Archive(from, to string) {}

func (m *mockLogger) Copy(src, dst string) {
	m.copyCalls = append(m.copyCalls, copyCall{src, dst})
}

func (m *mockLogger) Mkdir(path string) {}

func (m *mockLogger) Delete(path string) {}

func (m *mockLogger) Prune(path string) {}

func (m *mockLogger) Error(operation, path string, err error) {
	m.errorCalls = append(m.errorCalls, errorCall{operation, path, err})
}

func (m *mockLogger) Debug(message string) {
	m.debugCalls = append(m.debugCalls, message)
}
