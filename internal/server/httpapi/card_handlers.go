package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/and161185/course-keeper/internal/convert"
)

func courseID(r *http.Request) int64 {
	c, _ := CourseFrom(r.Context())
	return c.ID
}

// listCards returns the course canvas: viewer-specific cards plus relations.
func (a *API) listCards(w http.ResponseWriter, r *http.Request) error {
	viewer, _ := ViewerFrom(r.Context())
	cid := courseID(r)
	views, err := a.Cards.List(r.Context(), viewer, cid)
	if err != nil {
		return err
	}
	rels, err := a.Cards.Relations(r.Context(), cid)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToCardsPayload(views, rels))
	return nil
}

func (a *API) getCard(w http.ResponseWriter, r *http.Request) error {
	viewer, _ := ViewerFrom(r.Context())
	v, err := a.Cards.Get(r.Context(), viewer, courseID(r), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToCard(*v))
	return nil
}

func (a *API) createCard(w http.ResponseWriter, r *http.Request) error {
	var req convert.CardRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	viewer, _ := ViewerFrom(r.Context())
	v, err := a.Cards.Create(r.Context(), viewer, courseID(r), convert.ToNewCard(req))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, convert.ToCard(*v))
	return nil
}

func (a *API) updateCard(w http.ResponseWriter, r *http.Request) error {
	var req convert.CardRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	viewer, _ := ViewerFrom(r.Context())
	v, err := a.Cards.Update(r.Context(), viewer, courseID(r), mux.Vars(r)["id"], convert.ToCardPatch(req))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToCard(*v))
	return nil
}

func (a *API) deleteCard(w http.ResponseWriter, r *http.Request) error {
	if err := a.Cards.Delete(r.Context(), courseID(r), mux.Vars(r)["id"]); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) changeStatus(w http.ResponseWriter, r *http.Request) error {
	var req convert.StatusRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	from, to, err := convert.ToStatusChange(req)
	if err != nil {
		return err
	}
	viewer, _ := ViewerFrom(r.Context())
	v, err := a.Cards.ChangeStatus(r.Context(), viewer, courseID(r), mux.Vars(r)["id"], from, to)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToCard(*v))
	return nil
}

func (a *API) listRelations(w http.ResponseWriter, r *http.Request) error {
	rels, err := a.Cards.Relations(r.Context(), courseID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToRelations(rels))
	return nil
}

func (a *API) getRelation(w http.ResponseWriter, r *http.Request) error {
	id, err := pathUUID(r, "id")
	if err != nil {
		return err
	}
	rel, err := a.Cards.Relation(r.Context(), courseID(r), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, convert.ToRelation(*rel))
	return nil
}

func (a *API) createRelation(w http.ResponseWriter, r *http.Request) error {
	var req convert.RelationRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	in, err := convert.ToRelationInput(req)
	if err != nil {
		return err
	}
	rel, err := a.Cards.CreateRelation(r.Context(), courseID(r), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, convert.ToRelation(*rel))
	return nil
}

func (a *API) deleteRelation(w http.ResponseWriter, r *http.Request) error {
	id, err := pathUUID(r, "id")
	if err != nil {
		return err
	}
	if err := a.Cards.DeleteRelation(r.Context(), courseID(r), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
