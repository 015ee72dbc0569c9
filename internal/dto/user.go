package dto

import "taskmanager/internal/domain"

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name" binding:"max=120"`
	Email    string `json:"email" binding:"max=254"`
	Password string `json:"password" binding:"max=72"`
}

// ChangePasswordRequest is the JSON body for PUT /auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" binding:"max=72"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

func UserFromIdentity(id domain.Identity) UserResponse {
	return UserResponse{ID: id.ID, Name: id.Name, Email: id.Email}
}
