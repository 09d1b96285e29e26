// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
	"github.com/MarMar-mg/school-managment-system-sub000/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateClass(t *testing.T, repo school.ClassRepository, name string) school.Class {
	t.Helper()
	cls, err := repo.CreateClass(context.Background(), school.Class{Name: name, Grade: "10", Capacity: 30})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return cls
}

func CreateCourse(t *testing.T, repo school.CourseRepository, name string, classID, teacherID *int) school.Course {
	t.Helper()
	crs, err := repo.CreateCourse(context.Background(), school.Course{Name: name, ClassID: classID, TeacherID: teacherID})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateStudent(t *testing.T, repo school.StudentRepository, name, code string, classID *int, userID string) school.Student {
	t.Helper()
	std, err := repo.CreateStudent(context.Background(), school.Student{Name: name, Code: code, ClassID: classID, UserID: userID})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return std
}

func CreateTeacher(t *testing.T, repo school.TeacherRepository, name, userID string) school.Teacher {
	t.Helper()
	tch, err := repo.CreateTeacher(context.Background(), school.Teacher{Name: name, UserID: userID})
	if err != nil {
		t.Fatalf("CreateTeacher() failed: %v", err)
	}
	return tch
}

// NopLogger discards every message.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}
