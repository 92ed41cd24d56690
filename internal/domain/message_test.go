package domain

import "testing"

func TestMessageValidate(t *testing.T) {
	userID := int64(7)
	agentID := int64(1)

	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"user message", Message{SenderType: SenderUser, UserSenderID: &userID}, false},
		{"ai message", Message{SenderType: SenderAI, AgentSenderID: &agentID}, false},
		{"user message missing sender", Message{SenderType: SenderUser}, true},
		{"ai message missing sender", Message{SenderType: SenderAI}, true},
		{"user message with agent sender", Message{SenderType: SenderUser, UserSenderID: &userID, AgentSenderID: &agentID}, true},
		{"ai message with user sender", Message{SenderType: SenderAI, AgentSenderID: &agentID, UserSenderID: &userID}, true},
		{"unknown sender type", Message{SenderType: "bot", UserSenderID: &userID}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}
