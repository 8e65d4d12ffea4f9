package campaign

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrillee/bulksms/pkg/codes"
)

func seedContacts(t *testing.T, svc *Service, userID string, phones ...string) []int64 {
	t.Helper()
	var ids []int64
	for _, p := range phones {
		c, err := svc.CreateContact(context.Background(), Contact{UserID: userID, FirstName: "C", Phone: p})
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}
	return ids
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "221771234567", NormalizePhone("+221 77 123 45 67"))
	assert.Equal(t, "221771234567", NormalizePhone("00221771234567"))
	assert.Equal(t, "33612345678", NormalizePhone("33-6-12-34-56-78"))
}

func TestImportContacts(t *testing.T) {
	svc := NewService(NewMemoryStore(), "INFO")
	res, err := svc.ImportContacts(context.Background(), "u1", []Contact{
		{FirstName: "Awa", Phone: "+221770000001"},
		{FirstName: "Bad", Phone: "12"},
		{FirstName: "Dup", Phone: "221770000001"},
		{FirstName: "Moussa", Phone: "221770000002", Fields: map[string]string{"discount": "5%"}},
	})
	require.NoError(t, err)
	require.Len(t, res.Created, 2)
	assert.Equal(t, "u1", res.Created[0].UserID)
	assert.Equal(t, "5%", res.Created[1].Fields["discount"])
	require.Len(t, res.Rejected, 2)
	assert.Equal(t, 2, res.Rejected[0].Row)
	assert.Equal(t, 3, res.Rejected[1].Row)
}

func TestCreate_StatusAndDefaults(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(), "INFO")
	ids := seedContacts(t, svc, "u1", "221770000001", "221770000002")

	c, unknown, err := svc.Create(ctx, "u1", Draft{Name: "Promo", Template: "Hi {first_name} {nick}", ContactIDs: ids})
	require.NoError(t, err)
	assert.Equal(t, codes.CampaignStatusDraft, c.Status)
	assert.Equal(t, "INFO", c.Signature)
	assert.Equal(t, codes.CampaignTypeMarketing, c.Type)
	assert.Equal(t, 2, c.RecipientCount)
	assert.Equal(t, []string{"nick"}, unknown)

	later := time.Now().Add(time.Hour)
	c, _, err = svc.Create(ctx, "u1", Draft{Name: "Later", Template: "x", ContactIDs: ids, ScheduledAt: &later})
	require.NoError(t, err)
	assert.Equal(t, codes.CampaignStatusScheduled, c.Status)
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(), "INFO")
	mine := seedContacts(t, svc, "u1", "221770000001")
	theirs := seedContacts(t, svc, "u2", "221770000009")

	tests := []struct {
		name  string
		draft Draft
		field string
	}{
		{"no name", Draft{Template: "x", ContactIDs: mine}, "name"},
		{"no template", Draft{Name: "n", ContactIDs: mine}, "message_template"},
		{"bad type", Draft{Name: "n", Template: "x", Type: "spam", ContactIDs: mine}, "type"},
		{"long signature", Draft{Name: "n", Template: "x", Signature: "ABCDEFGHIJKL", ContactIDs: mine}, "signature"},
		{"no contacts", Draft{Name: "n", Template: "x"}, "contact_ids"},
		{"foreign contact", Draft{Name: "n", Template: "x", ContactIDs: append(mine, theirs...)}, "contact_ids"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Create(ctx, "u1", tt.draft)
			v, ok := IsValidation(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.field, v.Field)
		})
	}
}

func TestUpdate_OnlyWhileUnsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store, "INFO")
	ids := seedContacts(t, svc, "u1", "221770000001", "221770000002")

	c, _, err := svc.Create(ctx, "u1", Draft{Name: "A", Template: "x", ContactIDs: ids})
	require.NoError(t, err)

	c, _, err = svc.Update(ctx, "u1", c.ID, Draft{Name: "B", Template: "y", ContactIDs: ids[:1]})
	require.NoError(t, err)
	assert.Equal(t, "B", c.Name)
	assert.Equal(t, 1, c.RecipientCount)

	_, err = store.Finish(ctx, c.ID, codes.CampaignStatusSent)
	require.NoError(t, err)
	_, _, err = svc.Update(ctx, "u1", c.ID, Draft{Name: "C", Template: "z", ContactIDs: ids})
	assert.ErrorIs(t, err, ErrNotEditable)

	_, _, err = svc.Update(ctx, "u2", c.ID, Draft{Name: "C", Template: "z", ContactIDs: ids})
	assert.Error(t, err)
}

func TestDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store, "INFO")
	ids := seedContacts(t, svc, "u1", "221770000001")

	src, _, err := svc.Create(ctx, "u1", Draft{Name: "Promo", Template: "x", Signature: "SHOP", ContactIDs: ids})
	require.NoError(t, err)
	_, err = store.Finish(ctx, src.ID, codes.CampaignStatusSent)
	require.NoError(t, err)

	dup, err := svc.Duplicate(ctx, "u1", src.ID)
	require.NoError(t, err)
	assert.NotEqual(t, src.ID, dup.ID)
	assert.Equal(t, "Promo (copy)", dup.Name)
	assert.Equal(t, codes.CampaignStatusDraft, dup.Status)
	assert.Equal(t, "SHOP", dup.Signature)
	assert.Equal(t, ids, dup.ContactIDs)

	_, err = svc.Duplicate(ctx, "u2", src.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_TransitionOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, err := store.CreateRecord(ctx, DispatchRecord{MessageID: "m1", UserID: "u1", Status: codes.MsgStatusSent})
	require.NoError(t, err)

	_, err = store.CreateRecord(ctx, DispatchRecord{MessageID: "m1", UserID: "u1", Status: codes.MsgStatusSent})
	assert.ErrorIs(t, err, ErrDuplicateMessageID)

	rec, changed, err := store.TransitionRecord(ctx, "m1", codes.MsgStatusDelivered, nil)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, codes.MsgStatusDelivered, rec.Status)

	rec, changed, err = store.TransitionRecord(ctx, "m1", codes.MsgStatusFailed, nil)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, codes.MsgStatusDelivered, rec.Status)

	_, _, err = store.TransitionRecord(ctx, "nope", codes.MsgStatusDelivered, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
