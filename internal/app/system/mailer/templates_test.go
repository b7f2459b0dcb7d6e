package mailer

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func sampleDigest() DigestEmailData {
	return DigestEmailData{
		SiteName:    "Rule Post",
		SettingsURL: "https://rulepost.example/settings",
		Enquiries: []DigestLine{
			{Prefix: "Rule Enquiry #12 - ", LinkText: "Mast rake <limits>", URL: "https://rulepost.example/enquiries/e1"},
		},
		Responses: []DigestLine{
			{LinkText: "Response 1.2", URL: "https://rulepost.example/enquiries/e1/responses/r1", Suffix: " to Rule Enquiry #12 - Mast rake"},
		},
	}
}

func TestBuildDigestEmail_Text(t *testing.T) {
	msg := BuildDigestEmail(sampleDigest())

	g := goldie.New(t)
	g.Assert(t, "digest_text", []byte(msg.TextBody))
	assert.Equal(t, "New publications on Rule Post", msg.Subject)
}

func TestBuildDigestEmail_HTMLEscapesAndSkipsEmptySections(t *testing.T) {
	msg := BuildDigestEmail(sampleDigest())

	assert.Contains(t, msg.HTMLBody, "Mast rake &lt;limits&gt;")
	assert.Contains(t, msg.HTMLBody, `href="https://rulepost.example/enquiries/e1/responses/r1"`)
	assert.Contains(t, msg.HTMLBody, ">Responses<")
	assert.NotContains(t, msg.HTMLBody, ">Comments<")
}

func TestDigestEmailData_Empty(t *testing.T) {
	assert.True(t, DigestEmailData{}.Empty())
	assert.False(t, sampleDigest().Empty())
}

func TestSMTPSender_BuildMultipart(t *testing.T) {
	s := NewSMTP(Config{Host: "localhost", Port: 1025, From: "send@rulepost.example", FromName: "Rule Post"}, nil)
	body, err := s.build(Email{Bcc: []string{"a@x.example"}, Subject: "Hi", TextBody: "plain", HTMLBody: "<b>html</b>"})
	assert.NoError(t, err)

	raw := string(body)
	assert.Contains(t, raw, "Content-Type: multipart/alternative; boundary=")
	assert.Contains(t, raw, "To: \"Rule Post\" <send@rulepost.example>")
	assert.NotContains(t, raw, "a@x.example")
	assert.True(t, strings.Index(raw, "plain") < strings.Index(raw, "<b>html</b>"))
}

func TestRecipients(t *testing.T) {
	got := recipients(Email{To: "to@x.example", Bcc: []string{" ", "b@x.example"}})
	assert.Equal(t, []string{"to@x.example", "b@x.example"}, got)
}
