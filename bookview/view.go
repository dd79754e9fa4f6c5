package bookview

import (
	"github.com/aluiziolira/go-bookshop-client/models"
	"github.com/aluiziolira/go-bookshop-client/parser"
)

// Section is the part of the screen shown for the book load.
type Section int

const (
	SectionIdle Section = iota
	SectionLoading
	SectionError
	SectionContent
)

func (s Section) String() string {
	switch s {
	case SectionLoading:
		return "loading"
	case SectionError:
		return "error"
	case SectionContent:
		return "content"
	default:
		return "idle"
	}
}

// NoReviewsText is the placeholder shown when a book has no reviews.
const NoReviewsText = "No reviews yet"

// ReviewItem is one entry of the review list.
type ReviewItem struct {
	Placeholder bool
	Text        string // set for the placeholder only
	Author      string
	Date        string
	Rating      int
	Comment     string
}

// ReviewForm is the state of the review form.
type ReviewForm struct {
	Rating     int
	Comment    string
	Submitting bool
}

// View is a render-ready snapshot of a Page.
type View struct {
	Section Section
	Error   string
	Book    models.Book

	ShowPurchase     bool
	PurchaseDisabled bool
	ShowRentedNotice bool

	Reviews        []ReviewItem
	ShowReviewForm bool
	Form           ReviewForm

	LastTransaction *models.Transaction
}

// View returns the current snapshot. Exactly one of loading, error and
// content is selected by Section.
func (p *Page) View() View {
	p.mu.Lock()
	idErr := p.idErr
	reviews := append([]models.Review(nil), p.reviews...)
	form := ReviewForm{Rating: p.rating, Comment: p.comment}
	txBusy := p.txBusy
	lastTx := p.lastTx
	p.mu.Unlock()

	bookState := p.book.State()
	txState := p.transaction.State()
	form.Submitting = p.submit.State().Loading

	v := View{
		Form:            form,
		LastTransaction: lastTx,
		Reviews:         p.reviewItems(reviews),
		ShowReviewForm:  p.deps.Session.CurrentUser() != nil,
	}

	switch {
	case idErr != "":
		v.Section = SectionError
		v.Error = idErr
	case bookState.Loading:
		v.Section = SectionLoading
	case bookState.Err != "":
		v.Section = SectionError
		v.Error = bookState.Err
	case bookState.HasData:
		v.Section = SectionContent
		v.Book = bookState.Data
	default:
		v.Section = SectionIdle
	}

	if v.Section == SectionContent {
		v.ShowPurchase = v.Book.Status == models.StatusAvailable
		v.PurchaseDisabled = txBusy || txState.Loading
		v.ShowRentedNotice = v.Book.Status == models.StatusRented
	} else {
		v.ShowReviewForm = false
	}
	return v
}

func (p *Page) reviewItems(reviews []models.Review) []ReviewItem {
	if len(reviews) == 0 {
		return []ReviewItem{{Placeholder: true, Text: NoReviewsText}}
	}
	items := make([]ReviewItem, 0, len(reviews))
	for _, r := range reviews {
		items = append(items, ReviewItem{
			Author:  parser.ReviewerLabel(r),
			Date:    parser.ReviewDateLabel(r, p.deps.Location),
			Rating:  r.Rating,
			Comment: r.Comment,
		})
	}
	return items
}
