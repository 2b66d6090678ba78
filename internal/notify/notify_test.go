package notify

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"testing"
	"time"
	"utmbindex-backend/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func testSummary() Summary {
	started := time.Date(2024, 10, 18, 10, 15, 0, 0, time.UTC)
	return Summary{
		Command:  "races",
		Output:   "data/raw_race/race_20241018T101500_abcdef.json",
		Started:  started,
		Finished: started.Add(90 * time.Minute),
		Fields: []Field{
			{Name: "found", Value: 42},
			{Name: "failed", Value: 1},
		},
	}
}

func TestSummaryBody(t *testing.T) {
	summary := testSummary()
	require.Equal(t, "utmb-cli races completed", summary.Subject())
	require.Equal(t, `command: races
output: data/raw_race/race_20241018T101500_abcdef.json
started: 2024-10-18T10:15:00Z
duration: 1h30m0s
found: 42
failed: 1
`, summary.Body())

	summary.Err = errors.New("context canceled")
	require.Equal(t, "utmb-cli races stopped", summary.Subject())
	require.True(t, strings.HasSuffix(summary.Body(), "error: context canceled\n"))
}

func TestDisabled(t *testing.T) {
	require.False(t, SmtpConfig{Server: "localhost"}.Enabled())
	require.False(t, SmtpConfig{To: []string{"a@b.c"}}.Enabled())

	tel := &telemetry.Recorder{}
	NewNotifier(SmtpConfig{}, tel).Deliver(context.Background(), testSummary())
	require.Empty(t, tel.Reports(""))
}

func TestDeliverFailureIsWarning(t *testing.T) {
	tel := &telemetry.Recorder{}
	// nothing listens on port 1
	config := SmtpConfig{Server: "127.0.0.1", Port: 1, To: []string{"ops@example.com"}}
	NewNotifier(config, tel).Deliver(context.Background(), testSummary())

	warnings := tel.Reports("warning")
	require.Len(t, warnings, 1)
	require.Equal(t, "notify: notify.send", warnings[0].ID)
	require.Empty(t, tel.Reports("broken"))
}

func TestSendThroughSmtpServer(t *testing.T) {
	if os.Getenv("UTMB_TESTCONTAINERS") != "1" {
		t.Skip("set UTMB_TESTCONTAINERS=1 to run tests against an smtp container")
	}

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	smtp, err := testcontainers.GenericContainer(
		context.Background(),
		testcontainers.GenericContainerRequest{
			Started: true,
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "haravich/fake-smtp-server",
				ExposedPorts: []string{"1025:1025", "1080:1080"},
				WaitingFor:   wait.ForLog("smtp://0.0.0.0:1025"),
			},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		err := smtp.Terminate(context.Background())
		if err != nil {
			t.Fatal(err)
		}
	}()

	notifier := NewNotifier(SmtpConfig{
		Server:       "localhost",
		Port:         1025,
		EmailAddress: "utmb@email.com",
		Password:     "default",
		To:           []string{"ops@email.com"},
	}, nil)
	err = notifier.Send(context.Background(), testSummary())
	require.NoError(t, err)

	res, err := resty.New().R().Get("http://127.0.0.1:1080/messages/1.plain")
	require.NoError(t, err)
	require.Contains(t, res.String(), "found: 42")
}
