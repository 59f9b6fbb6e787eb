package service

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/jobmarket-backend/internal/models"
	"github.com/ignatzorin/jobmarket-backend/internal/pkg/apperror"
)

// OfferAction — операция над оффером, требующая проверки прав.
type OfferAction string

const (
	ActionViewOffer     OfferAction = "view"
	ActionAcceptOffer   OfferAction = "accept"
	ActionRejectOffer   OfferAction = "reject"
	ActionCancelOffer   OfferAction = "cancel"
	ActionCompleteOffer OfferAction = "complete"
)

// authorizeOffer — единая проверка прав на операции с оффером.
// Обработчики и сервисы не дублируют сравнение идентификаторов по
// месту: вся матрица "кто что может" живёт здесь.
func authorizeOffer(userID uuid.UUID, role string, offer *models.Offer, action OfferAction) error {
	if role == models.RoleAdmin {
		return nil
	}

	switch action {
	case ActionViewOffer:
		if userID == offer.CustomerID || userID == offer.ContractorID {
			return nil
		}
	case ActionAcceptOffer, ActionRejectOffer:
		if userID == offer.ContractorID {
			return nil
		}
	case ActionCancelOffer, ActionCompleteOffer:
		if userID == offer.CustomerID {
			return nil
		}
	}

	return apperror.ErrForbidden
}
