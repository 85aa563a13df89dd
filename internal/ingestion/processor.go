package ingestion

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/grantdesk/backend/internal/auth"
	"github.com/grantdesk/backend/internal/storage/models"
	"github.com/grantdesk/backend/internal/storage/sqlite"
	"github.com/grantdesk/backend/pkg/logger"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Processor turns uploaded files and raw text into Document rows with
// extracted plain-text content and lightweight format metadata.
type Processor struct {
	store *sqlite.Client
}

func NewProcessor(store *sqlite.Client) *Processor {
	return &Processor{store: store}
}

// Upload describes an incoming file.
type Upload struct {
	FileName string
	MIMEType string
	Size     int64
	Data     []byte
}

// IngestUpload stores an uploaded file as a chat-scoped document. The chat
// is created when it does not exist yet; an existing chat must belong to
// userID. The new document id is appended to the chat's active list unless
// it is already present.
func (p *Processor) IngestUpload(userID, chatID string, up Upload) (*models.Document, error) {
	if len(up.Data) == 0 {
		return nil, fmt.Errorf("%w: no file content", auth.ErrInvalidInput)
	}

	chat, err := p.store.GetChat(chatID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to look up chat: %w", err)
		}
		chat = &models.Chat{
			ID:                chatID,
			Title:             titleFromFileName(up.FileName),
			UserID:            userID,
			ActiveDocumentIDs: models.StringList{},
		}
		if err := p.store.CreateChat(chat); err != nil {
			return nil, fmt.Errorf("failed to create chat: %w", err)
		}
	} else if chat.UserID != userID {
		return nil, auth.ErrForbidden
	}

	doc := p.buildDocument(chat.ID, up)
	if err := p.store.CreateDocument(doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	if err := p.store.AppendActiveDocument(chat.ID, doc.ID); err != nil {
		return nil, fmt.Errorf("failed to activate document: %w", err)
	}

	logger.Info("Document ingested",
		zap.String("doc_id", doc.ID),
		zap.String("chat_id", chat.ID),
		zap.String("file_type", doc.FileType),
	)

	return doc, nil
}

// IngestUploadToCategory stores an uploaded file in the knowledge library.
func (p *Processor) IngestUploadToCategory(categoryID string, up Upload) (*models.KnowledgeDocument, error) {
	if len(up.Data) == 0 {
		return nil, fmt.Errorf("%w: no file content", auth.ErrInvalidInput)
	}

	if _, err := p.store.GetKnowledgeCategory(categoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up category: %w", err)
	}

	chatDoc := p.buildDocument("", up)
	doc := &models.KnowledgeDocument{
		ID:         chatDoc.ID,
		Title:      chatDoc.Title,
		FileType:   chatDoc.FileType,
		Content:    chatDoc.Content,
		CategoryID: categoryID,
	}
	if err := p.store.CreateKnowledgeDocument(doc); err != nil {
		return nil, fmt.Errorf("failed to store knowledge document: %w", err)
	}

	return doc, nil
}

// IngestText creates a fresh chat holding a single document whose id
// becomes the chat's entire active list.
func (p *Processor) IngestText(userID, title, content, fileType string) (*models.Chat, *models.Document, error) {
	if content == "" {
		return nil, nil, fmt.Errorf("%w: content is required", auth.ErrInvalidInput)
	}
	if title == "" {
		title = "Untitled document"
	}
	if fileType == "" {
		fileType = "txt"
	}

	chat := &models.Chat{
		ID:                uuid.New().String(),
		Title:             title,
		UserID:            userID,
		ActiveDocumentIDs: models.StringList{},
	}
	if err := p.store.CreateChat(chat); err != nil {
		return nil, nil, fmt.Errorf("failed to create chat: %w", err)
	}

	doc := &models.Document{
		ID:       uuid.New().String(),
		ChatID:   chat.ID,
		Title:    title,
		FileType: fileType,
		Content:  content,
		Metadata: models.DocumentMetadata{Size: int64(len(content))},
	}
	if err := p.store.CreateDocument(doc); err != nil {
		return nil, nil, fmt.Errorf("failed to store document: %w", err)
	}

	if err := p.store.ReplaceActiveDocuments(chat.ID, []string{doc.ID}); err != nil {
		return nil, nil, fmt.Errorf("failed to activate document: %w", err)
	}
	chat.ActiveDocumentIDs = models.StringList{doc.ID}

	logger.Info("Text ingested", zap.String("doc_id", doc.ID), zap.String("chat_id", chat.ID))

	return chat, doc, nil
}

func (p *Processor) buildDocument(chatID string, up Upload) *models.Document {
	fileType := fileTypeFromName(up.FileName)

	doc := &models.Document{
		ID:       uuid.New().String(),
		ChatID:   chatID,
		Title:    titleFromFileName(up.FileName),
		FileType: fileType,
		Metadata: models.DocumentMetadata{
			OriginName: up.FileName,
			Size:       up.Size,
			MIMEType:   up.MIMEType,
		},
	}

	switch fileType {
	case "html":
		doc.Content = extractHTMLText(string(up.Data))
		if title := extractHTMLTitle(string(up.Data)); title != "" {
			doc.Title = title
		}
	case "csv":
		stats := extractCSVStats(up.Data)
		doc.Content = string(up.Data)
		doc.Metadata.Sheets = 1
		doc.Metadata.Rows = stats.rows
		doc.Metadata.Columns = stats.cols
		doc.Metadata.HasFormulas = stats.hasFormulas
	case "pdf":
		// No text layer extraction; the page count is still useful to the
		// calendar and library views.
		doc.Pages = countPDFPages(up.Data)
		doc.Metadata.Pages = doc.Pages
		doc.Content = ""
	default:
		doc.Content = strings.TrimSpace(string(up.Data))
	}

	return doc
}

func extractHTMLText(html string) string {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	gq.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := gq.Find("body").Text()
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func extractHTMLTitle(html string) string {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	title := gq.Find("title").First().Text()
	if title == "" {
		title = gq.Find("h1").First().Text()
	}
	return strings.TrimSpace(title)
}

type csvStats struct {
	rows        int
	cols        int
	hasFormulas bool
}

func extractCSVStats(data []byte) csvStats {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	var stats csvStats
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		stats.rows++
		if len(record) > stats.cols {
			stats.cols = len(record)
		}
		for _, cell := range record {
			if strings.HasPrefix(strings.TrimSpace(cell), "=") {
				stats.hasFormulas = true
			}
		}
	}
	return stats
}

// countPDFPages counts page objects in the raw PDF bytes. Cheap and
// approximate, but accurate for the unencrypted PDFs users upload.
func countPDFPages(data []byte) int {
	count := bytes.Count(data, []byte("/Type /Page")) - bytes.Count(data, []byte("/Type /Pages"))
	count += bytes.Count(data, []byte("/Type/Page")) - bytes.Count(data, []byte("/Type/Pages"))
	if count < 0 {
		return 0
	}
	return count
}

func fileTypeFromName(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch ext {
	case "htm":
		return "html"
	case "markdown":
		return "md"
	case "":
		return "txt"
	default:
		return ext
	}
}

func titleFromFileName(name string) string {
	base := filepath.Base(name)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	title = strings.TrimSpace(title)
	if title == "" {
		return "Untitled document"
	}
	return title
}
