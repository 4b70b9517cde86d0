package service

import (
	"errors"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/internal/app/repository"
	"github.com/aabhushan/aabhushan-backend/pkg/logger"
	"gorm.io/gorm"
)

type AddressService struct {
	addressRepo repository.AddressRepository
}

func NewAddressService(addressRepo repository.AddressRepository) *AddressService {
	return &AddressService{addressRepo: addressRepo}
}

func (s *AddressService) ListAddresses(userID uint) ([]model.Address, error) {
	return s.addressRepo.FindByUserID(userID)
}

// CreateAddress saves a new address. The first address of a user becomes
// the default automatically; an explicit default demotes the previous one.
func (s *AddressService) CreateAddress(address *model.Address) error {
	logger.Info("Creating address", map[string]interface{}{
		"user_id": address.UserID,
	})

	existing, err := s.addressRepo.FindByUserID(address.UserID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		address.IsDefault = true
	} else if address.IsDefault {
		if err := s.addressRepo.ClearDefault(address.UserID); err != nil {
			return err
		}
	}

	return s.addressRepo.Create(address)
}

func (s *AddressService) UpdateAddress(userID, addressID uint, updates *model.Address) (*model.Address, error) {
	address, err := s.ownedAddress(userID, addressID)
	if err != nil {
		return nil, err
	}

	if updates.IsDefault && !address.IsDefault {
		if err := s.addressRepo.ClearDefault(userID); err != nil {
			return nil, err
		}
	}

	address.Name = updates.Name
	address.Phone = updates.Phone
	address.Line1 = updates.Line1
	address.Line2 = updates.Line2
	address.City = updates.City
	address.State = updates.State
	address.Pincode = updates.Pincode
	address.IsDefault = address.IsDefault || updates.IsDefault

	if err := s.addressRepo.Update(address); err != nil {
		return nil, err
	}
	return address, nil
}

func (s *AddressService) DeleteAddress(userID, addressID uint) error {
	address, err := s.ownedAddress(userID, addressID)
	if err != nil {
		return err
	}

	if err := s.addressRepo.Delete(addressID); err != nil {
		return err
	}

	// Promote another address when the default was removed.
	if address.IsDefault {
		remaining, err := s.addressRepo.FindByUserID(userID)
		if err != nil || len(remaining) == 0 {
			return err
		}
		remaining[0].IsDefault = true
		return s.addressRepo.Update(&remaining[0])
	}
	return nil
}

// SetDefaultAddress promotes one address and demotes the rest.
func (s *AddressService) SetDefaultAddress(userID, addressID uint) (*model.Address, error) {
	address, err := s.ownedAddress(userID, addressID)
	if err != nil {
		return nil, err
	}

	if err := s.addressRepo.ClearDefault(userID); err != nil {
		return nil, err
	}
	address.IsDefault = true
	if err := s.addressRepo.Update(address); err != nil {
		return nil, err
	}
	return address, nil
}

func (s *AddressService) ownedAddress(userID, addressID uint) (*model.Address, error) {
	address, err := s.addressRepo.FindByID(addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAddressNotFound
		}
		return nil, err
	}
	if address.UserID != userID {
		return nil, ErrAddressNotFound
	}
	return address, nil
}
