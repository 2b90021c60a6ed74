package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
)

const dateLayout = "2006-01-02"

// DocumentBuilder renders a user's products, sales and debts as short
// paragraphs and chunks them for embedding.
type DocumentBuilder struct {
	pipeline driven.PostProcessorPipeline
}

// NewDocumentBuilder creates a DocumentBuilder that chunks through pipeline
func NewDocumentBuilder(pipeline driven.PostProcessorPipeline) *DocumentBuilder {
	return &DocumentBuilder{pipeline: pipeline}
}

// BuildDocuments returns the documents for every record in set, products
// first, then sales, then debts, each in source order. An empty set yields
// an empty slice.
func (b *DocumentBuilder) BuildDocuments(set *domain.UserRecordSet) []domain.Document {
	if set == nil || set.IsEmpty() {
		return []domain.Document{}
	}

	currency := set.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	docs := make([]domain.Document, 0, set.RecordCount())
	for i := range set.Products {
		p := &set.Products[i]
		docs = b.appendChunks(docs, set.UserID, domain.DocumentTypeProduct, p.ID, p.Name, renderProduct(p, currency))
	}
	for i := range set.Sales {
		s := &set.Sales[i]
		docs = b.appendChunks(docs, set.UserID, domain.DocumentTypeSale, s.ID, s.ProductName, renderSale(s, currency))
	}
	for i := range set.Debts {
		d := &set.Debts[i]
		name := d.Description
		if name == "" {
			name = d.Creditor
		}
		docs = b.appendChunks(docs, set.UserID, domain.DocumentTypeDebt, d.ID, name, renderDebt(d, currency))
	}
	return docs
}

func (b *DocumentBuilder) appendChunks(docs []domain.Document, userID string, docType domain.DocumentType, recordID, name, text string) []domain.Document {
	for i, chunk := range b.pipeline.Process(text) {
		docs = append(docs, domain.Document{
			ID:      domain.DocumentID(docType, recordID, i),
			Content: chunk.Content,
			Metadata: domain.DocumentMetadata{
				Type:       docType,
				RecordID:   recordID,
				Name:       name,
				UserID:     userID,
				ChunkIndex: i,
			},
		})
	}
	return docs
}

func renderProduct(p *domain.Product, currency string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Product: %s (id %s).", p.Name, p.ID)
	if p.Description != "" {
		fmt.Fprintf(&sb, " Description: %s.", sentence(p.Description))
	}
	fmt.Fprintf(&sb, " Quantity in stock: %d.", p.Quantity)
	fmt.Fprintf(&sb, " Acquisition value: %s per unit, %s in total.",
		money(p.AcquisitionValue, currency), money(p.AcquisitionValue*float64(p.Quantity), currency))
	if !p.AcquiredAt.IsZero() {
		fmt.Fprintf(&sb, " Acquired on %s.", day(p.AcquiredAt))
	}
	status := p.Status
	if status == "" {
		status = domain.ProductStatusActive
	}
	fmt.Fprintf(&sb, " Status: %s.", status)
	if p.IsLost() {
		if p.LossDate != nil {
			fmt.Fprintf(&sb, " Lost on %s.", day(*p.LossDate))
		}
		if p.LossReason != "" {
			fmt.Fprintf(&sb, " Loss reason: %s.", sentence(p.LossReason))
		}
	}
	return sb.String()
}

func renderSale(s *domain.Sale, currency string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Sale (id %s): %d x %s", s.ID, s.Quantity, s.ProductName)
	if s.ProductID != "" {
		fmt.Fprintf(&sb, " (product id %s)", s.ProductID)
	}
	fmt.Fprintf(&sb, " sold for %s", money(s.SaleValue, currency))
	if !s.SoldAt.IsZero() {
		fmt.Fprintf(&sb, " on %s", day(s.SoldAt))
	}
	sb.WriteString(".")
	if s.CustomerName != "" {
		fmt.Fprintf(&sb, " Customer: %s.", s.CustomerName)
	}
	status := s.PaymentStatus
	if status == "" {
		status = domain.PaymentStatusPaid
	}
	fmt.Fprintf(&sb, " Payment status: %s.", status)
	return sb.String()
}

func renderDebt(d *domain.Debt, currency string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Debt (id %s)", d.ID)
	if d.Description != "" {
		fmt.Fprintf(&sb, ": %s", sentence(d.Description))
	}
	sb.WriteString(".")
	if d.Creditor != "" {
		fmt.Fprintf(&sb, " Creditor: %s.", d.Creditor)
	}
	fmt.Fprintf(&sb, " Amount owed: %s.", money(d.Amount, currency))
	if d.DueDate != nil {
		fmt.Fprintf(&sb, " Due on %s.", day(*d.DueDate))
	}
	if d.Paid {
		sb.WriteString(" Status: paid")
		if d.PaidAt != nil {
			fmt.Fprintf(&sb, " on %s", day(*d.PaidAt))
		}
		sb.WriteString(".")
	} else {
		sb.WriteString(" Status: unpaid.")
	}
	return sb.String()
}

// sentence trims text so a template can end it with its own period
func sentence(text string) string {
	return strings.TrimSuffix(strings.TrimSpace(text), ".")
}

func money(v float64, currency string) string {
	return fmt.Sprintf("%.2f %s", v, currency)
}

func day(t time.Time) string {
	return t.Format(dateLayout)
}
