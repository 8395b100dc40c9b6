package controller

import (
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"taskflow/middleware"
	"taskflow/models"
	"taskflow/services"
	"taskflow/utils"
)

type AddCommentRequest struct {
	Content string `json:"content" form:"content" validate:"max=5000"`
}

type CommentController struct {
	Comments *services.CommentService
	Logger   *logrus.Entry
}

func NewCommentController(comments *services.CommentService, logger *logrus.Entry) *CommentController {
	return &CommentController{Comments: comments, Logger: logger}
}

func (cc *CommentController) GetComments(c *fiber.Ctx) error {
	taskID, ok := paramID(c, "taskId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid task ID", nil)
	}
	comments, err := cc.Comments.ListComments(c.UserContext(), middleware.CurrentUser(c), taskID)
	if err != nil {
		return respondError(c, cc.Logger, err)
	}

	out := make([]models.CommentView, 0, len(comments))
	for i := range comments {
		out = append(out, comments[i].View())
	}
	return c.JSON(utils.SuccessResponse(out))
}

// AddComment accepts either a JSON body or a multipart form carrying a content
// field and any number of "files".
func (cc *CommentController) AddComment(c *fiber.Ctx) error {
	taskID, ok := paramID(c, "taskId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid task ID", nil)
	}

	var req AddCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	var uploads []services.Upload
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid multipart form", err)
		}
		var closers []io.Closer
		defer func() {
			for _, cl := range closers {
				cl.Close()
			}
		}()
		for _, fh := range form.File["files"] {
			up, f, err := openUpload(fh)
			if err != nil {
				return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid upload", err)
			}
			closers = append(closers, f)
			uploads = append(uploads, up)
		}
	}

	comment, err := cc.Comments.AddComment(c.UserContext(), middleware.CurrentUser(c), taskID, req.Content, uploads)
	if err != nil {
		return respondError(c, cc.Logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(comment.View()))
}

func (cc *CommentController) DeleteComment(c *fiber.Ctx) error {
	commentID, ok := paramID(c, "commentId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid comment ID", nil)
	}
	if err := cc.Comments.DeleteComment(c.UserContext(), middleware.CurrentUser(c), commentID); err != nil {
		return respondError(c, cc.Logger, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Comment deleted successfully"})
}

func (cc *CommentController) DownloadFile(c *fiber.Ctx) error {
	commentID, ok := paramID(c, "commentId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid comment ID", nil)
	}
	fileID, ok := paramID(c, "fileId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid file ID", nil)
	}

	meta, body, err := cc.Comments.OpenFile(c.UserContext(), middleware.CurrentUser(c), commentID, fileID)
	if err != nil {
		return respondError(c, cc.Logger, err)
	}
	return sendBlob(c, meta.FileMeta, body)
}

func openUpload(fh *multipart.FileHeader) (services.Upload, multipart.File, error) {
	f, err := fh.Open()
	if err != nil {
		return services.Upload{}, nil, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
	}
	return services.Upload{
		Name:     fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Body:     f,
	}, f, nil
}

// sendBlob streams a stored file back as an attachment. Fiber closes the body
// once it has been written.
func sendBlob(c *fiber.Ctx, meta models.FileMeta, body io.ReadCloser) error {
	if meta.MimeType != "" {
		c.Set(fiber.HeaderContentType, meta.MimeType)
	} else {
		c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	}
	c.Set(fiber.HeaderContentDisposition, `attachment; filename=`+strconv.Quote(meta.Name))
	return c.SendStream(body, int(meta.Size))
}
