package schema

import (
	"fmt"
)

// legacyFieldRenames maps person keys of the "people" layout to their current names
var legacyFieldRenames = map[string]string{
	"firstName":  "name",
	"lastName":   "surname",
	"birthName":  "maidenName",
	"birthDate":  "dob",
	"mother":     "motherId",
	"father":     "fatherId",
	"spouse":     "spouseId",
	"patronymic": "fatherName",
}

func builtinMigrations() []Migration {
	return []Migration{
		{
			FromVersion: FormatLegacyPeople,
			ToVersion:   FormatV1,
			Description: "rename people to persons and normalize person field names",
			Up:          migrateLegacyPeople,
		},
		{
			FromVersion: FormatV1,
			ToVersion:   FormatV2,
			Description: "add cache format, line-only keys and relations backup",
			Up:          migrateV1ToV2,
		},
	}
}

func migrateLegacyPeople(doc Document) error {
	people, ok := doc["people"].([]interface{})
	if !ok {
		return fmt.Errorf("legacy document has no people array")
	}

	persons := make([]interface{}, 0, len(people))
	for i, entry := range people {
		person, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		for from, to := range legacyFieldRenames {
			v, present := person[from]
			if !present {
				continue
			}
			if _, taken := person[to]; !taken {
				person[to] = v
			}
			delete(person, from)
		}
		// numeric ids were common in the oldest files
		switch id := person["id"].(type) {
		case float64:
			person["id"] = fmt.Sprintf("p%d", int(id))
		case nil:
			person["id"] = fmt.Sprintf("p%d", i+1)
		}
		for _, rel := range []string{"motherId", "fatherId", "spouseId"} {
			if n, ok := person[rel].(float64); ok {
				person[rel] = fmt.Sprintf("p%d", int(n))
			}
		}
		persons = append(persons, person)
	}

	delete(doc, "people")
	doc["persons"] = persons
	doc["version"] = string(FormatV1)
	return nil
}

func migrateV1ToV2(doc Document) error {
	if _, ok := doc["lineOnlyConnections"]; !ok {
		doc["lineOnlyConnections"] = []interface{}{}
	}
	if _, ok := doc["cacheFormat"]; !ok {
		doc["cacheFormat"] = "enhanced"
	}

	if _, ok := doc["relationsBackup"]; !ok {
		backup := make(map[string]interface{})
		persons, _ := doc["persons"].([]interface{})
		for _, entry := range persons {
			person, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			id, _ := person["id"].(string)
			if id == "" {
				continue
			}
			rel := make(map[string]interface{})
			for _, key := range []string{"motherId", "fatherId", "spouseId"} {
				if v, ok := person[key].(string); ok && v != "" {
					rel[key] = v
				}
			}
			if len(rel) > 0 {
				backup[id] = rel
			}
		}
		doc["relationsBackup"] = backup
	}

	doc["version"] = string(FormatV2)
	return nil
}
