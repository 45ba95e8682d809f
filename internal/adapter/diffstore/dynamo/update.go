package dynamo

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/heartmarshall/zengin-sync/internal/adapter/diffstore"
	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// update accumulates an UpdateItem expression with placeholder names.
type update struct {
	sets       []string
	removes    []string
	conditions []string
	names      map[string]string
	values     map[string]types.AttributeValue
}

func newUpdate() *update {
	return &update{names: map[string]string{}, values: map[string]types.AttributeValue{}}
}

func (u *update) name(attr string) string {
	n := "#" + attr
	u.names[n] = attr
	return n
}

func (u *update) value(v types.AttributeValue) string {
	p := fmt.Sprintf(":v%d", len(u.values))
	u.values[p] = v
	return p
}

func (u *update) set(attr string, v types.AttributeValue) {
	u.sets = append(u.sets, u.name(attr)+" = "+u.value(v))
}

func (u *update) remove(attrs ...string) {
	for _, a := range attrs {
		u.removes = append(u.removes, u.name(a))
	}
}

func (u *update) condition(attr string, v types.AttributeValue) {
	u.conditions = append(u.conditions, u.name(attr)+" = "+u.value(v))
}

func (u *update) exists(attr string) {
	u.conditions = append(u.conditions, "attribute_exists("+u.name(attr)+")")
}

func (u *update) expression() string {
	var parts []string
	if len(u.sets) > 0 {
		parts = append(parts, "SET "+strings.Join(u.sets, ", "))
	}
	if len(u.removes) > 0 {
		parts = append(parts, "REMOVE "+strings.Join(u.removes, ", "))
	}
	return strings.Join(parts, " ")
}

func (u *update) input(table string, rec *domain.DiffRecord) *dynamodb.UpdateItemInput {
	in := &dynamodb.UpdateItemInput{
		TableName: aws.String(table),
		Key: map[string]types.AttributeValue{
			attrID:        str(rec.ID),
			attrTimestamp: str(diffstore.FormatTimestamp(rec.Timestamp)),
		},
		UpdateExpression:         aws.String(u.expression()),
		ExpressionAttributeNames: u.names,
	}
	if len(u.values) > 0 {
		in.ExpressionAttributeValues = u.values
	}
	if len(u.conditions) > 0 {
		in.ConditionExpression = aws.String(strings.Join(u.conditions, " AND "))
	}
	return in
}
