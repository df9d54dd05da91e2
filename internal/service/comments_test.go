package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"gorm.io/gorm"

	"cosrent/internal/model"
)

// newCommentFixture wires the comment service with one user, one product and
// one confirmed order containing that product.
func newCommentFixture(t *testing.T) (*gorm.DB, *OrderService, *CommentService, *model.User, *model.Product, *model.Order) {
	t.Helper()
	db := newTestDB(t)
	orders := NewOrderService(db, testLogger(), nil)
	comments := NewCommentService(db, testLogger())

	user := seedUser(t, db, "Mai")
	product := seedProduct(t, db, "Nezuko kimono", 120000, 200000, 10)
	order := createOrderFor(t, orders, user.ID, product.ID, 1)
	if err := orders.MarkConfirmed(context.Background(), order.ID); err != nil {
		t.Fatalf("confirm order: %v", err)
	}
	return db, orders, comments, user, product, order
}

func TestCreateCommentRequiresReviewableOrder(t *testing.T) {
	db := newTestDB(t)
	orders := NewOrderService(db, testLogger(), nil)
	comments := NewCommentService(db, testLogger())

	user := seedUser(t, db, "Mai")
	product := seedProduct(t, db, "Kimono", 120000, 0, 5)
	order := createOrderFor(t, orders, user.ID, product.ID, 1)

	in := CreateCommentInput{OrderID: order.ID, ProductID: product.ID, Rating: 5, Content: "great fit"}

	// Pending order: not yet paid, not reviewable.
	if _, err := comments.Create(context.Background(), user.ID, in); !errors.Is(err, ErrCommentOrderState) {
		t.Fatalf("pending order err = %v, want ErrCommentOrderState", err)
	}

	if err := orders.MarkConfirmed(context.Background(), order.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	comment, err := comments.Create(context.Background(), user.ID, in)
	if err != nil {
		t.Fatalf("create after confirm: %v", err)
	}
	if comment.Rating != 5 || !comment.IsActive {
		t.Errorf("comment = rating %d active %v, want 5/true", comment.Rating, comment.IsActive)
	}
}

func TestCreateCommentCancelledOrderRejected(t *testing.T) {
	_, orders, comments, user, product, order := newCommentFixture(t)

	if _, err := orders.Cancel(context.Background(), order.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := comments.Create(context.Background(), user.ID, CreateCommentInput{
		OrderID: order.ID, ProductID: product.ID, Rating: 4,
	})
	if !errors.Is(err, ErrCommentOrderState) {
		t.Fatalf("err = %v, want ErrCommentOrderState", err)
	}
}

func TestCreateCommentOnlyOrderOwner(t *testing.T) {
	db, _, comments, _, product, order := newCommentFixture(t)
	stranger := seedUser(t, db, "Trang")

	_, err := comments.Create(context.Background(), stranger.ID, CreateCommentInput{
		OrderID: order.ID, ProductID: product.ID, Rating: 5,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestCreateCommentProductMustBeInOrder(t *testing.T) {
	db, _, comments, user, _, order := newCommentFixture(t)
	other := seedProduct(t, db, "Unrelated prop", 50000, 0, 5)

	_, err := comments.Create(context.Background(), user.ID, CreateCommentInput{
		OrderID: order.ID, ProductID: other.ID, Rating: 5,
	})
	if !errors.Is(err, ErrProductNotInOrder) {
		t.Fatalf("err = %v, want ErrProductNotInOrder", err)
	}
}

func TestCreateCommentOnePerOrder(t *testing.T) {
	_, _, comments, user, product, order := newCommentFixture(t)

	in := CreateCommentInput{OrderID: order.ID, ProductID: product.ID, Rating: 5, Content: "first"}
	first, err := comments.Create(context.Background(), user.ID, in)
	if err != nil {
		t.Fatalf("first review: %v", err)
	}
	if _, err := comments.Create(context.Background(), user.ID, in); !errors.Is(err, ErrDuplicateReview) {
		t.Fatalf("second review err = %v, want ErrDuplicateReview", err)
	}

	// Deactivating the review frees the order for a replacement.
	if err := comments.Remove(context.Background(), first.ID, user.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := comments.Create(context.Background(), user.ID, in); err != nil {
		t.Fatalf("re-review after removal: %v", err)
	}
}

func TestCreateCommentRatingBounds(t *testing.T) {
	_, _, comments, user, product, order := newCommentFixture(t)

	for _, rating := range []int{0, -1, 6} {
		_, err := comments.Create(context.Background(), user.ID, CreateCommentInput{
			OrderID: order.ID, ProductID: product.ID, Rating: rating,
		})
		if !errors.Is(err, ErrInvalidRating) {
			t.Errorf("rating %d err = %v, want ErrInvalidRating", rating, err)
		}
	}
}

func TestUpdateAndRemoveAuthorOnly(t *testing.T) {
	db, _, comments, user, product, order := newCommentFixture(t)
	stranger := seedUser(t, db, "Trang")

	comment, err := comments.Create(context.Background(), user.ID, CreateCommentInput{
		OrderID: order.ID, ProductID: product.ID, Rating: 5, Content: "original",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newContent := "edited"
	if _, err := comments.Update(context.Background(), comment.ID, stranger.ID, UpdateCommentInput{Content: &newContent}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger update err = %v, want ErrForbidden", err)
	}
	if err := comments.Remove(context.Background(), comment.ID, stranger.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger remove err = %v, want ErrForbidden", err)
	}

	newRating := 3
	updated, err := comments.Update(context.Background(), comment.ID, user.ID, UpdateCommentInput{
		Content: &newContent,
		Rating:  &newRating,
	})
	if err != nil {
		t.Fatalf("author update: %v", err)
	}
	if updated.Content != "edited" || updated.Rating != 3 {
		t.Errorf("updated = %q/%d, want edited/3", updated.Content, updated.Rating)
	}
}

func TestRemoveSoftDeactivates(t *testing.T) {
	db, _, comments, user, product, order := newCommentFixture(t)

	comment, err := comments.Create(context.Background(), user.ID, CreateCommentInput{
		OrderID: order.ID, ProductID: product.ID, Rating: 4,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := comments.Remove(context.Background(), comment.ID, user.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	// The row survives but stops showing up in listings.
	var row model.Comment
	if err := db.First(&row, comment.ID).Error; err != nil {
		t.Fatalf("row should survive removal: %v", err)
	}
	if row.IsActive {
		t.Error("comment still active after removal")
	}
	views, total, err := comments.FindByProduct(context.Background(), product.ID, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 || len(views) != 0 {
		t.Errorf("listed comments = %d (total %d), want none", len(views), total)
	}
}

func TestAverageAndDisplayRating(t *testing.T) {
	_, orders, comments, user, product, _ := newCommentFixture(t)

	// No reviews yet.
	avg, err := comments.AverageRating(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("average: %v", err)
	}
	if avg != 0 {
		t.Errorf("empty average = %v, want 0", avg)
	}

	// One review per order, so each rating needs its own confirmed order.
	for _, rating := range []int{5, 4, 5} {
		o := createOrderFor(t, orders, user.ID, product.ID, 1)
		if err := orders.MarkConfirmed(context.Background(), o.ID); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		if _, err := comments.Create(context.Background(), user.ID, CreateCommentInput{
			OrderID: o.ID, ProductID: product.ID, Rating: rating,
		}); err != nil {
			t.Fatalf("review rating %d: %v", rating, err)
		}
	}

	avg, err = comments.AverageRating(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("average: %v", err)
	}
	if want := 14.0 / 3.0; math.Abs(avg-want) > 1e-9 {
		t.Errorf("average = %v, want %v", avg, want)
	}
	display, err := comments.DisplayRating(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("display: %v", err)
	}
	if display != 4 {
		t.Errorf("display rating = %d, want 4", display)
	}
}

func TestFindByProductAttachesAuthors(t *testing.T) {
	_, _, comments, user, product, order := newCommentFixture(t)

	if _, err := comments.Create(context.Background(), user.ID, CreateCommentInput{
		OrderID: order.ID, ProductID: product.ID, Rating: 5, Content: "lovely",
		ImageURLs: []string{"https://img.example.com/1.jpg"},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	views, total, err := comments.FindByProduct(context.Background(), product.ID, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(views) != 1 {
		t.Fatalf("total=%d len=%d, want 1/1", total, len(views))
	}
	if views[0].UserName != "Mai" {
		t.Errorf("author = %q, want Mai", views[0].UserName)
	}
	if len(views[0].ImageURLs) != 1 || views[0].ImageURLs[0] != "https://img.example.com/1.jpg" {
		t.Errorf("image urls = %v", views[0].ImageURLs)
	}
}
