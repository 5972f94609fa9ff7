package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/ingest"
	"expenses/internal/storage"
)

func TestService_IngestText(t *testing.T) {
	type testCase struct {
		name         string
		input        string
		setupMock    func(s *ingest.MockStore, b *ingest.MockBatch)
		wantInserted int
		wantErrors   []string
		wantErr      bool
	}

	expectRows := func(n int) func(s *ingest.MockStore, b *ingest.MockBatch) {
		return func(s *ingest.MockStore, b *ingest.MockBatch) {
			s.EXPECT().BeginBatch(gomock.Any()).Return(b, nil)
			next := int64(0)
			b.EXPECT().Add(gomock.Any(), gomock.Any()).Times(n).DoAndReturn(
				func(context.Context, core.Expense) (int64, error) {
					next++
					return next, nil
				})
			b.EXPECT().Commit().Return(nil)
			b.EXPECT().Rollback().Return(nil)
		}
	}

	tests := []testCase{
		{
			name: "all lines valid",
			input: "2024-01-15;Food;500.0;Groceries\n" +
				"2024-01-20;Transport;200.0;Metro\n" +
				"2024-02-10;Fun;1500.0;Movie",
			setupMock:    expectRows(3),
			wantInserted: 3,
			wantErrors:   []string{},
		},
		{
			name:         "one invalid date",
			input:        "invalid-date;Food;500.0;X\n2024-01-20;Transport;200.0;Metro",
			setupMock:    expectRows(1),
			wantInserted: 1,
			wantErrors:   []string{"invalid date: invalid-date;Food;500.0;X"},
		},
		{
			name: "errors keep input order",
			input: "2024-01-15;Food\n" +
				"\n" +
				"2024-01-15;Food;-5\r\n" +
				"2024-01-15;Food;5\r" +
				"x;y;z",
			setupMock:    expectRows(1),
			wantInserted: 1,
			wantErrors: []string{
				"insufficient fields: 2024-01-15;Food",
				"invalid amount: 2024-01-15;Food;-5",
				"invalid date: x;y;z",
			},
		},
		{
			name:         "every line invalid opens no batch",
			input:        "bad\nworse;line",
			wantInserted: 0,
			wantErrors: []string{
				"insufficient fields: bad",
				"insufficient fields: worse;line",
			},
		},
		{
			name:         "empty upload",
			input:        "\n\n   \n",
			wantInserted: 0,
			wantErrors:   []string{},
		},
		{
			name:  "begin fails",
			input: "2024-01-15;Food;5",
			setupMock: func(s *ingest.MockStore, b *ingest.MockBatch) {
				s.EXPECT().BeginBatch(gomock.Any()).Return(nil, errors.New("database is locked"))
			},
			wantErrors: []string{},
			wantErr:    true,
		},
		{
			name:  "insert fails rolls back",
			input: "2024-01-15;Food;5\n2024-01-16;Food;6",
			setupMock: func(s *ingest.MockStore, b *ingest.MockBatch) {
				s.EXPECT().BeginBatch(gomock.Any()).Return(b, nil)
				b.EXPECT().Add(gomock.Any(), gomock.Any()).Return(int64(1), nil)
				b.EXPECT().Add(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("disk full"))
				b.EXPECT().Rollback().Return(nil)
			},
			wantErrors: []string{},
			wantErr:    true,
		},
		{
			name:  "commit fails",
			input: "2024-01-15;Food;5",
			setupMock: func(s *ingest.MockStore, b *ingest.MockBatch) {
				s.EXPECT().BeginBatch(gomock.Any()).Return(b, nil)
				b.EXPECT().Add(gomock.Any(), gomock.Any()).Return(int64(1), nil)
				b.EXPECT().Commit().Return(errors.New("commit failed"))
				b.EXPECT().Rollback().Return(nil)
			},
			wantErrors: []string{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			store := ingest.NewMockStore(ctrl)
			batch := ingest.NewMockBatch(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(store, batch)
			}

			svc := ingest.NewService(store)
			got, err := svc.IngestText(context.Background(), tt.input)

			assert.Equal(t, tt.wantErrors, got.Errors)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Zero(t, got.Inserted)
				assert.Empty(t, got.IDs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantInserted, got.Inserted)
			assert.Len(t, got.IDs, tt.wantInserted)
			assert.Equal(t, tt.wantInserted+len(tt.wantErrors), len(got.Lines))
		})
	}
}

func TestService_PublishesAfterCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := ingest.NewMockStore(ctrl)
	batch := ingest.NewMockBatch(ctrl)
	pub := ingest.NewMockPublisher(ctrl)

	gomock.InOrder(
		store.EXPECT().BeginBatch(gomock.Any()).Return(batch, nil),
		batch.EXPECT().Add(gomock.Any(), gomock.Any()).Return(int64(41), nil),
		batch.EXPECT().Add(gomock.Any(), gomock.Any()).Return(int64(42), nil),
		batch.EXPECT().Commit().Return(nil),
		batch.EXPECT().Rollback().Return(nil),
	)
	pub.EXPECT().
		PublishUploadIngested(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg *amqp.UploadIngestedMessage) error {
			assert.Equal(t, []int64{41, 42}, msg.ExpenseIDs)
			assert.Equal(t, 2, msg.Inserted)
			assert.Equal(t, 1, msg.Rejected)
			assert.NotEmpty(t, msg.BatchID)
			return nil
		})

	svc := ingest.NewService(store, ingest.WithPublisher(pub))
	res, err := svc.IngestText(context.Background(), "2024-01-15;Food;5\nbad\n2024-01-16;Food;6")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.NotEmpty(t, res.BatchID)
}

func TestService_PublishFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := ingest.NewMockStore(ctrl)
	batch := ingest.NewMockBatch(ctrl)
	pub := ingest.NewMockPublisher(ctrl)

	store.EXPECT().BeginBatch(gomock.Any()).Return(batch, nil)
	batch.EXPECT().Add(gomock.Any(), gomock.Any()).Return(int64(1), nil)
	batch.EXPECT().Commit().Return(nil)
	batch.EXPECT().Rollback().Return(nil)
	pub.EXPECT().PublishUploadIngested(gomock.Any(), gomock.Any()).Return(amqp.ErrCircuitOpen)

	svc := ingest.NewService(store, ingest.WithPublisher(pub))
	res, err := svc.IngestText(context.Background(), "2024-01-15;Food;5")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
}

func TestService_NoPublishWithoutInserts(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := ingest.NewMockStore(ctrl)
	pub := ingest.NewMockPublisher(ctrl)

	svc := ingest.NewService(store, ingest.WithPublisher(pub))
	res, err := svc.IngestText(context.Background(), "nope")
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)
}

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "expenses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestService_IngestIntoSQLite(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	svc := ingest.NewService(repo)

	input := "2024-01-15;Food;500.0;Groceries\n" +
		"2024-01-20;Transport;200.0;Metro\n" +
		"15.02.2024;Food;800\n" +
		"2024-02-15;Fun;0;Free\n"

	res, err := svc.Ingest(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Inserted)
	assert.Equal(t, []string{"invalid amount: 2024-02-15;Fun;0;Free"}, res.Errors)

	stored, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, res.IDs, []int64{stored[0].ID, stored[1].ID, stored[2].ID})
	assert.Equal(t, "15.02.2024", stored[2].Date)
	assert.Nil(t, stored[2].Comment)
	assert.Equal(t, "Metro", stored[1].CommentText())
}

func TestService_IngestDecodesWindows1252(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	svc := ingest.NewService(repo)

	// "2024-01-15;Café;4.50;crème" with é=0xE9 and è=0xE8.
	var buf bytes.Buffer
	buf.WriteString("2024-01-15;Caf")
	buf.WriteByte(0xE9)
	buf.WriteString(";4.50;cr")
	buf.WriteByte(0xE8)
	buf.WriteString("me\n")

	res, err := svc.Ingest(ctx, &buf)
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)

	stored, err := repo.Get(ctx, res.IDs[0])
	require.NoError(t, err)
	assert.Equal(t, "Café", stored.Category)
	assert.Equal(t, "crème", stored.CommentText())
}

func TestService_IngestDecodesLateWindows1252Byte(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	svc := ingest.NewService(repo)

	var buf bytes.Buffer
	for i := 0; i < 200; i++ {
		buf.WriteString("2024-01-15;Food;500.0;Groceries\n")
	}
	buf.WriteString("2024-01-16;Caf")
	buf.WriteByte(0xE9)
	buf.WriteString(";12.5;Espresso\n")

	res, err := svc.Ingest(ctx, &buf)
	require.NoError(t, err)
	require.Equal(t, 201, res.Inserted)

	last, err := repo.Get(ctx, res.IDs[len(res.IDs)-1])
	require.NoError(t, err)
	assert.Equal(t, "Café", last.Category)
}

func TestService_InsertedPlusErrorsCoverNonBlankLines(t *testing.T) {
	repo := newRepo(t)
	svc := ingest.NewService(repo)

	lines := []string{
		"2024-01-01;A;1", "", "2024-13-01;A;1", "01.01.2024;B;0.01",
		"2024-01-01;A", "  ", "2024-01-01;A;1e-3;c", "2024-01-01;A;-0.0",
	}
	res, err := svc.IngestText(context.Background(), strings.Join(lines, "\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Inserted)
	assert.Len(t, res.Errors, 3)
	assert.Equal(t, 6, res.Inserted+len(res.Errors))
}
