package main

import (
	"time"

	"github.com/semitexa/orm/schema"
)

// Timestamps is the shared mixin contributing created_at/updated_at to every
// embedding resource.
type Timestamps struct {
	CreatedAt *time.Time `sx:"col=created_at,type=datetime"`
	UpdatedAt *time.Time `sx:"col=updated_at,type=datetime"`
}

type User struct {
	Timestamps
	ID     int64    `sx:"col=id,type=int,pk=auto"`
	Email  string   `sx:"col=email,type=varchar,len=255,filterable=email"`
	Name   string   `sx:"col=name,type=varchar,len=255"`
	Active bool     `sx:"col=active,type=boolean,default=true"`
	Orders []*Order `sx:"rel=has_many,fk=user_id"`
}

func (User) TableName() string { return "users" }

func (User) Indexes() []schema.IndexSpec {
	return []schema.IndexSpec{{Columns: []string{"email"}, Unique: true}}
}

func (User) Defaults() []any {
	return []any{
		&User{ID: 1, Email: "admin@example.com", Name: "Administrator", Active: true},
		&User{ID: 2, Email: "support@example.com", Name: "Support", Active: true},
	}
}

type Order struct {
	Timestamps
	ID     int64        `sx:"col=id,type=int,pk=auto"`
	UserID int64        `sx:"col=user_id,type=int,filterable=user_id"`
	Status string       `sx:"col=status,type=varchar,len=32,default=pending,filterable=status"`
	Total  string       `sx:"col=total,type=decimal,prec=10,scale=2"`
	User   *User        `sx:"rel=belongs_to,fk=user_id"`
	Items  []*OrderItem `sx:"rel=has_many,fk=order_id"`
	Tags   []*Tag       `sx:"rel=many_to_many,fk=order_id,related=tag_id,pivot=order_tag"`
}

func (Order) TableName() string { return "orders" }

type OrderItem struct {
	ID       int64  `sx:"col=id,type=int,pk=auto"`
	OrderID  int64  `sx:"col=order_id,type=int,filterable=order_id"`
	Sku      string `sx:"col=sku,type=varchar,len=64"`
	Quantity int    `sx:"col=quantity,type=int,default=1"`
	Order    *Order `sx:"rel=belongs_to,fk=order_id"`
}

func (OrderItem) TableName() string { return "order_items" }

type Tag struct {
	ID   int64  `sx:"col=id,type=int,pk=auto"`
	Name string `sx:"col=name,type=varchar,len=64,filterable=name"`
}

func (Tag) TableName() string { return "tags" }

func (Tag) Indexes() []schema.IndexSpec {
	return []schema.IndexSpec{{Columns: []string{"name"}, Unique: true}}
}

func (Tag) Defaults() []any {
	return []any{
		&Tag{ID: 1, Name: "priority"},
		&Tag{ID: 2, Name: "gift"},
	}
}
