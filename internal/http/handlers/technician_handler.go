package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thankatech/backend/internal/http/handlers/common"
	"github.com/thankatech/backend/internal/repository"
	"github.com/thankatech/backend/internal/service"
)

const maxPhotoSize = 5 << 20 // 5 MB

// TechnicianHandler — каталог, публичные страницы и профиль техника.
type TechnicianHandler struct {
	technicians *service.TechnicianService
}

func NewTechnicianHandler(technicians *service.TechnicianService) *TechnicianHandler {
	return &TechnicianHandler{technicians: technicians}
}

// List GET /technicians — публичный каталог с фильтрами.
func (h *TechnicianHandler) List(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	params := repository.ListParams{Limit: limit, Offset: offset}
	if v := c.Query("category"); v != "" {
		params.Category = &v
	}
	if v := c.Query("location"); v != "" {
		params.Location = &v
	}
	if v := c.Query("search"); v != "" {
		params.Search = &v
	}

	items, err := h.technicians.List(c.Request.Context(), params)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"technicians": items, "limit": limit, "offset": offset})
}

// GetPublicProfile GET /technicians/:unique_id — страница техника без авторизации.
func (h *TechnicianHandler) GetPublicProfile(c *gin.Context) {
	uniqueID := c.Param("unique_id")
	if uniqueID == "" {
		common.RespondBadRequest(c, "unique_id обязателен")
		return
	}

	profile, err := h.technicians.GetPublicProfile(c.Request.Context(), uniqueID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// GetMyProfile GET /technicians/me.
func (h *TechnicianHandler) GetMyProfile(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	profile, err := h.technicians.GetProfile(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateMyProfile PUT /technicians/me.
func (h *TechnicianHandler) UpdateMyProfile(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		BusinessName *string `json:"business_name"`
		Category     *string `json:"category"`
		Bio          *string `json:"bio"`
		Phone        *string `json:"phone"`
		Location     *string `json:"location"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	profile, err := h.technicians.UpdateProfile(c.Request.Context(), userID, service.UpdateProfileInput{
		BusinessName: req.BusinessName,
		Category:     req.Category,
		Bio:          req.Bio,
		Phone:        req.Phone,
		Location:     req.Location,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UploadPhoto POST /technicians/me/photo — multipart загрузка фото профиля.
func (h *TechnicianHandler) UploadPhoto(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		common.RespondBadRequest(c, "файл photo обязателен")
		return
	}
	if fileHeader.Size > maxPhotoSize {
		common.RespondBadRequest(c, "файл слишком большой, максимум 5 МБ")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		common.RespondBadRequest(c, "не удалось прочитать файл")
		return
	}
	defer src.Close()

	media, err := h.technicians.UploadPhoto(c.Request.Context(), userID, fileHeader.Filename, src)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, media)
}

// GetPhoto GET /media/:id — отдаёт файл фото.
func (h *TechnicianHandler) GetPhoto(c *gin.Context) {
	photoID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	media, absPath, err := h.technicians.GetPhoto(c.Request.Context(), photoID)
	if err != nil {
		c.Error(err)
		return
	}

	c.Header("Content-Type", media.FileType)
	c.File(absPath)
}
