package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rrfiler/internal/filing/filingtest"
	"rrfiler/internal/filing/models"
	"rrfiler/internal/filing/records"
	"rrfiler/internal/filing/response"
	"rrfiler/internal/filing/service"
	"rrfiler/internal/filing/store"
	"rrfiler/internal/filing/transport"
	"rrfiler/pkg/requestcontext"
	"rrfiler/pkg/testutil"
)

func TestNeedsReviewRecoveredAfterRecordFix(t *testing.T) {
	src := records.NewMemory()
	host := transport.NewMemoryClient()
	svc, err := service.New(store.NewInMemory(), src, host)
	require.NoError(t, err)
	at := func(d time.Duration) context.Context {
		return requestcontext.WithTime(context.Background(), t0.Add(d))
	}

	broken := filingtest.ValidRecord("txn-fix")
	broken.Property.Address = models.Address{}
	src.Put(*broken)

	sc := testutil.NewScenario(t)
	sc.Given("a record that fails preflight", func(t *testing.T) {
		sub, err := svc.Submit(at(0), "txn-fix")
		require.Error(t, err)
		assert.Equal(t, models.StatusNeedsReview, sub.Status)
		assert.Zero(t, host.Calls(transport.OpUpload))
	})

	var submitted *models.Submission
	sc.When("the record is corrected and the operator retries", func(t *testing.T) {
		src.Put(*filingtest.ValidRecord("txn-fix"))
		sub, err := svc.LatestForRecord(context.Background(), "txn-fix")
		require.NoError(t, err)

		_, err = svc.Retry(at(time.Hour), sub.ID)
		require.NoError(t, err)
		submitted, err = svc.Submit(at(time.Hour), "txn-fix")
		require.NoError(t, err)
		assert.Equal(t, models.StatusSubmitted, submitted.Status)
		assert.Equal(t, 2, submitted.Attempt)
	})

	sc.Then("the regulator's acknowledgement completes the filing", func(t *testing.T) {
		host.Put(response.OutboxDir, response.MessagesFilename(submitted.TransmittedFilename), filingtest.AcceptedMessages())
		host.Put(response.OutboxDir, response.ReceiptFilename(submitted.TransmittedFilename), filingtest.Receipt("31000012345678"))

		got, err := svc.Poll(at(2*time.Hour), submitted.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAccepted, got.Status)
		require.Len(t, got.History, 1)
		assert.Equal(t, models.StatusNeedsReview, got.History[0].Status)
		assert.NotEmpty(t, got.History[0].ReviewReasons)
	}).And("the filing appears in the record's history", func(t *testing.T) {
		sub, err := svc.LatestForRecord(context.Background(), "txn-fix")
		require.NoError(t, err)
		assert.Equal(t, submitted.ID, sub.ID)
		assert.Equal(t, models.StatusAccepted, sub.Status)
	})
}
